package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/provider"
)

// StateKey is where the current tier is persisted.
const StateKey = "voicememo/entitlement/tier"

// State is the persisted tier record.
type State struct {
	Tier Tier `json:"tier"`
	// Since is when the current tier was granted. Zero for free.
	Since time.Time `json:"since,omitempty"`
	// PaidSince is when the first paid tier was granted. Upgrades between
	// paid tiers keep it, so subscription months keep accruing.
	PaidSince time.Time `json:"paid_since,omitempty"`
}

// Service owns the current tier. It is the single writer of State.
type Service struct {
	mu    sync.RWMutex
	state State
	store provider.ContextStore[State]
	now   func() time.Time
	log   *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService loads the persisted tier from store, defaulting to free.
func NewService(ctx context.Context, store provider.ContextStore[State], opts ...Option) (*Service, error) {
	s := &Service{
		state: State{Tier: TierFree},
		store: store,
		now:   time.Now,
		log:   logger.WithComponent("entitlement"),
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := store.Load(ctx, StateKey)
	if err != nil {
		return nil, errors.Persistence("load tier", err)
	}
	if loaded != nil {
		if !loaded.Tier.Valid() {
			s.log.Warn("ignoring persisted tier", logger.Fields(logger.FieldTier, string(loaded.Tier)))
		} else {
			s.state = *loaded
		}
	}
	return s, nil
}

// Tier returns the current tier.
func (s *Service) Tier() Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Tier
}

// State returns a copy of the current state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Capabilities returns the capability set of the current tier.
func (s *Service) Capabilities() Set {
	return Capabilities(s.Tier())
}

// CanAccess reports whether the current tier grants c.
func (s *Service) CanAccess(c Capability) bool {
	return Capabilities(s.Tier()).Has(c)
}

// Upgrade moves to tier. Re-applying the current tier is a no-op and moving
// to a lower tier fails with INVALID_TRANSITION. The new state is persisted
// before it becomes visible.
func (s *Service) Upgrade(ctx context.Context, tier Tier) error {
	if !tier.Valid() {
		return errors.InvalidInput("tier", "unknown tier "+string(tier))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state.Tier
	if tier == current {
		return nil
	}
	if tier.Less(current) {
		return errors.InvalidTransition(string(current), string(tier))
	}

	now := s.now().UTC()
	next := State{Tier: tier, Since: now, PaidSince: s.state.PaidSince}
	if next.PaidSince.IsZero() {
		next.PaidSince = now
	}
	if err := s.store.Save(ctx, StateKey, &next, 0); err != nil {
		return errors.Persistence("save tier", err)
	}
	s.state = next
	s.log.Info("tier upgraded", logger.Fields("from", string(current), logger.FieldTier, string(tier)))
	return nil
}

// MonthsSubscribed returns whole calendar months on any paid tier as of
// now, counted from the first paid upgrade. Free is always 0.
func (s *Service) MonthsSubscribed(now time.Time) int {
	st := s.State()
	from := st.PaidSince
	if from.IsZero() {
		// records written before PaidSince existed
		from = st.Since
	}
	if st.Tier == TierFree || from.IsZero() {
		return 0
	}
	return monthsBetween(from, now)
}

func monthsBetween(from, to time.Time) int {
	from, to = from.UTC(), to.UTC()
	if !to.After(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
