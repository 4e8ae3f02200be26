package prompt

import (
	"time"

	"github.com/kbukum/voicememo/entitlement"
)

// eligible reports whether kind is evaluated at all for tier.
func eligible(k Kind, tier entitlement.Tier) bool {
	switch k {
	case KindSpeaker:
		return tier == entitlement.TierFree
	case KindPro:
		return tier == entitlement.TierSpeaker
	case KindLifetime:
		return tier == entitlement.TierSpeaker || tier == entitlement.TierPro
	}
	return false
}

// milestoneValue picks the usage metric a kind's milestone is measured on.
func milestoneValue(k Kind, u Usage) int {
	switch k {
	case KindSpeaker:
		return u.MultiSpeakerRecordings
	case KindPro:
		return u.TotalRecordings
	default:
		return u.MonthsSubscribed
	}
}

// decide is the pure show/no-show rule: a one-time milestone prompt OR a
// capped reminder spaced by the cooldown.
func decide(k Kind, tier entitlement.Tier, u Usage, st CounterState, r Rule, now time.Time) bool {
	if !eligible(k, tier) {
		return false
	}
	if !st.SeenOnce && milestoneValue(k, u) >= r.Milestone {
		return true
	}
	if gate := r.minRecordings(); gate > 0 && u.TotalRecordings < gate {
		return false
	}
	if st.Count >= r.maxShows() {
		return false
	}
	return st.LastShownAt == nil || now.Sub(*st.LastShownAt) >= r.Cooldown
}
