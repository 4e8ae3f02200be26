package entitlement

import (
	"fmt"
	"sort"
	"strings"
)

// Tier is a subscription tier. Tiers are totally ordered by feature breadth.
type Tier string

const (
	TierFree     Tier = "free"
	TierSpeaker  Tier = "speaker"
	TierPro      Tier = "pro"
	TierLifetime Tier = "lifetime"
)

var tierRank = map[Tier]int{
	TierFree:     0,
	TierSpeaker:  1,
	TierPro:      2,
	TierLifetime: 3,
}

// Tiers returns all tiers in ascending order.
func Tiers() []Tier {
	return []Tier{TierFree, TierSpeaker, TierPro, TierLifetime}
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierRank[t]; !ok {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Less reports whether t ranks below other.
func (t Tier) Less(other Tier) bool {
	return tierRank[t] < tierRank[other]
}

// Capability is a feature gated by tier.
type Capability string

const (
	SpeakerDiarization         Capability = "speakerDiarization"
	AINoiseReduction           Capability = "aiNoiseReduction"
	AISummaries                Capability = "aiSummaries"
	AudioEnhancement           Capability = "audioEnhancement"
	ExportSpeakerTracks        Capability = "exportSpeakerTracks"
	AdvancedSpeakerDiarization Capability = "advancedSpeakerDiarization"
)

// AllCapabilities returns every capability in declaration order.
func AllCapabilities() []Capability {
	return []Capability{
		SpeakerDiarization,
		AINoiseReduction,
		AISummaries,
		AudioEnhancement,
		ExportSpeakerTracks,
		AdvancedSpeakerDiarization,
	}
}

// Set is an immutable-by-convention set of capabilities.
type Set map[Capability]struct{}

// Has reports whether c is in the set. A nil Set has nothing.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// grants lists the capabilities each tier adds on top of the tier below it.
// Lifetime-exclusive capabilities are listed only on lifetime.
var grants = []struct {
	tier Tier
	caps []Capability
}{
	{TierFree, nil},
	{TierSpeaker, []Capability{SpeakerDiarization, ExportSpeakerTracks}},
	{TierPro, []Capability{AINoiseReduction, AISummaries, AudioEnhancement}},
	{TierLifetime, []Capability{AdvancedSpeakerDiarization}},
}

// Capabilities returns the capability set for tier. Unknown tiers get the
// free set. The result is a fresh map on every call.
func Capabilities(tier Tier) Set {
	set := Set{}
	rank, ok := tierRank[tier]
	if !ok {
		return set
	}
	for _, g := range grants {
		if tierRank[g.tier] > rank {
			break
		}
		for _, c := range g.caps {
			set[c] = struct{}{}
		}
	}
	return set
}
