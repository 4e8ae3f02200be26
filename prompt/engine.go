package prompt

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/voicememo/entitlement"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/provider"
)

// Engine evaluates and records upsell prompts. It exclusively owns the
// counter state of every kind.
type Engine struct {
	thresholds Thresholds
	store      provider.ContextStore[CounterState]
	now        func() time.Time
	log        *logger.Logger
	metrics    *observability.Metrics

	// one lock per kind; kinds are independent
	locks  map[Kind]*sync.Mutex
	stateM sync.RWMutex
	state  map[Kind]CounterState
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds overrides DefaultThresholds. Unset fields keep their defaults.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) {
		t.ApplyDefaults()
		e.thresholds = t
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records each decision.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine loads the counters of every kind from store.
func NewEngine(ctx context.Context, store provider.ContextStore[CounterState], opts ...Option) (*Engine, error) {
	e := &Engine{
		thresholds: DefaultThresholds(),
		store:      store,
		now:        time.Now,
		log:        logger.WithComponent("prompt"),
		locks:      make(map[Kind]*sync.Mutex),
		state:      make(map[Kind]CounterState),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, k := range Kinds() {
		e.locks[k] = &sync.Mutex{}
		st, err := store.Load(ctx, k.StoreKey())
		if err != nil {
			return nil, errors.Persistence("load prompt counters", err).WithDetail("kind", string(k))
		}
		if st != nil {
			e.state[k] = *st
		}
	}
	return e, nil
}

// ShouldShow reports whether kind should be shown now. It does not mark.
// Callers that act on the answer should use Evaluate instead.
func (e *Engine) ShouldShow(kind Kind, tier entitlement.Tier, usage Usage) (bool, error) {
	mu, err := e.lock(kind)
	if err != nil {
		return false, err
	}
	mu.Lock()
	defer mu.Unlock()
	return decide(kind, tier, usage, e.counters(kind), e.thresholds.rule(kind), e.now()), nil
}

// MarkShown records that kind was shown. The counters are persisted before
// MarkShown returns; on a failed save the in-memory state is unchanged.
func (e *Engine) MarkShown(ctx context.Context, kind Kind) error {
	mu, err := e.lock(kind)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return e.mark(ctx, kind)
}

// Evaluate decides and, when the answer is true, marks the kind shown in
// the same critical section. A true result means the caller must render
// the prompt.
func (e *Engine) Evaluate(ctx context.Context, kind Kind, tier entitlement.Tier, usage Usage) (bool, error) {
	mu, err := e.lock(kind)
	if err != nil {
		return false, err
	}
	mu.Lock()
	defer mu.Unlock()

	show := decide(kind, tier, usage, e.counters(kind), e.thresholds.rule(kind), e.now())
	e.metrics.RecordPrompt(ctx, string(kind), show)
	if !show {
		return false, nil
	}
	if err := e.mark(ctx, kind); err != nil {
		return false, err
	}
	return true, nil
}

// Counters returns a snapshot of every kind's state.
func (e *Engine) Counters() map[Kind]CounterState {
	e.stateM.RLock()
	defer e.stateM.RUnlock()
	out := make(map[Kind]CounterState, len(Kinds()))
	for _, k := range Kinds() {
		out[k] = e.state[k]
	}
	return out
}

// mark must be called with the kind lock held.
func (e *Engine) mark(ctx context.Context, kind Kind) error {
	now := e.now().UTC()
	next := e.counters(kind)
	next.SeenOnce = true
	next.Count++
	next.LastShownAt = &now

	if err := e.store.Save(ctx, kind.StoreKey(), &next, 0); err != nil {
		return errors.Persistence("save prompt counters", err).WithDetail("kind", string(kind))
	}

	e.stateM.Lock()
	e.state[kind] = next
	e.stateM.Unlock()

	e.log.Info("prompt shown", logger.Fields(logger.FieldKind, string(kind), "count", next.Count))
	return nil
}

func (e *Engine) counters(kind Kind) CounterState {
	e.stateM.RLock()
	defer e.stateM.RUnlock()
	return e.state[kind]
}

func (e *Engine) lock(kind Kind) (*sync.Mutex, error) {
	mu, ok := e.locks[kind]
	if !ok {
		return nil, errors.InvalidInput("kind", "unknown prompt kind "+string(kind))
	}
	return mu, nil
}
