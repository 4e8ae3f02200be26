package prompt

import (
	"fmt"
	"time"
)

// Rule tunes one prompt kind. Zero or nil fields take the kind's default,
// so a config may override a single field.
type Rule struct {
	// Milestone is the usage level that triggers the one-time prompt.
	Milestone int `yaml:"milestone" mapstructure:"milestone" validate:"gte=0"`
	// MinRecordings gates reminders on total recordings. 0 disables the gate.
	MinRecordings *int `yaml:"min_recordings" mapstructure:"min_recordings" validate:"omitempty,gte=0"`
	// MaxShows caps reminders. 0 disables them.
	MaxShows *int `yaml:"max_shows" mapstructure:"max_shows" validate:"omitempty,gte=0"`
	// Cooldown is the minimum time between reminders.
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
}

func (r Rule) withDefaults(d Rule) Rule {
	if r.Milestone == 0 {
		r.Milestone = d.Milestone
	}
	if r.MinRecordings == nil {
		r.MinRecordings = d.MinRecordings
	}
	if r.MaxShows == nil {
		r.MaxShows = d.MaxShows
	}
	if r.Cooldown == 0 {
		r.Cooldown = d.Cooldown
	}
	return r
}

func (r Rule) minRecordings() int { return deref(r.MinRecordings) }
func (r Rule) maxShows() int      { return deref(r.MaxShows) }

// Count returns a pointer for the optional Rule fields.
func Count(n int) *int { return &n }

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// Thresholds holds the rule for every kind.
type Thresholds struct {
	Speaker  Rule `yaml:"speaker" mapstructure:"speaker"`
	Pro      Rule `yaml:"pro" mapstructure:"pro"`
	Lifetime Rule `yaml:"lifetime" mapstructure:"lifetime"`
}

const day = 24 * time.Hour

// DefaultThresholds returns the product defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Speaker:  Rule{Milestone: 3, MinRecordings: Count(0), MaxShows: Count(5), Cooldown: 3 * day},
		Pro:      Rule{Milestone: 10, MinRecordings: Count(0), MaxShows: Count(3), Cooldown: 7 * day},
		Lifetime: Rule{Milestone: 3, MinRecordings: Count(50), MaxShows: Count(2), Cooldown: 30 * day},
	}
}

// ApplyDefaults fills unset fields of each rule from DefaultThresholds.
func (t *Thresholds) ApplyDefaults() {
	d := DefaultThresholds()
	t.Speaker = t.Speaker.withDefaults(d.Speaker)
	t.Pro = t.Pro.withDefaults(d.Pro)
	t.Lifetime = t.Lifetime.withDefaults(d.Lifetime)
}

// Validate rejects negative values.
func (t *Thresholds) Validate() error {
	for kind, r := range map[Kind]Rule{KindSpeaker: t.Speaker, KindPro: t.Pro, KindLifetime: t.Lifetime} {
		if r.Cooldown < 0 {
			return fmt.Errorf("prompt.%s.cooldown must not be negative", kind)
		}
		if r.Milestone < 0 || r.minRecordings() < 0 || r.maxShows() < 0 {
			return fmt.Errorf("prompt.%s: counts must not be negative", kind)
		}
	}
	return nil
}

func (t *Thresholds) rule(k Kind) Rule {
	switch k {
	case KindSpeaker:
		return t.Speaker
	case KindPro:
		return t.Pro
	default:
		return t.Lifetime
	}
}
