package prompt

import (
	"fmt"
	"time"

	"github.com/kbukum/voicememo/entitlement"
)

// Kind identifies an upsell prompt.
type Kind string

const (
	KindSpeaker  Kind = "speaker_upsell"
	KindPro      Kind = "pro_upsell"
	KindLifetime Kind = "lifetime_upsell"
)

// Kinds returns every prompt kind.
func Kinds() []Kind {
	return []Kind{KindSpeaker, KindPro, KindLifetime}
}

// ParseKind accepts either the full kind or its short form ("speaker").
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if s == string(k) || s+"_upsell" == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown prompt kind %q", s)
}

// Target is the tier the prompt offers.
func (k Kind) Target() entitlement.Tier {
	switch k {
	case KindSpeaker:
		return entitlement.TierSpeaker
	case KindPro:
		return entitlement.TierPro
	default:
		return entitlement.TierLifetime
	}
}

// StoreKey is the persistence key for the kind's counters.
func (k Kind) StoreKey() string {
	return "voicememo/prompt/" + string(k)
}

// CounterState is the persisted history of one prompt kind.
type CounterState struct {
	SeenOnce    bool       `json:"seen_once"`
	Count       int        `json:"count"`
	LastShownAt *time.Time `json:"last_shown_at,omitempty"`
}

// Usage is the snapshot callers pass at a trigger point.
type Usage struct {
	MultiSpeakerRecordings int `json:"multi_speaker_recordings"`
	TotalRecordings        int `json:"total_recordings"`
	MonthsSubscribed       int `json:"months_subscribed"`
}
