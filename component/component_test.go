package component

import (
	"context"
	"fmt"
	"testing"

	"github.com/kbukum/voicememo/logger"
)

type fakeComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
}

func (f *fakeComponent) Name() string { return f.name }
func (f *fakeComponent) Start(ctx context.Context) error {
	if f.startOrder != nil {
		*f.startOrder = append(*f.startOrder, f.name)
	}
	return f.startErr
}
func (f *fakeComponent) Stop(ctx context.Context) error {
	if f.stopOrder != nil {
		*f.stopOrder = append(*f.stopOrder, f.name)
	}
	return f.stopErr
}
func (f *fakeComponent) Health(ctx context.Context) Health { return f.health }

func newTestRegistry() *Registry { return NewRegistry(logger.Nop()) }

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register(&fakeComponent{name: "state"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&fakeComponent{name: "state"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestGet(t *testing.T) {
	r := newTestRegistry()
	_ = r.Register(&fakeComponent{name: "state"})

	if got := r.Get("state"); got == nil || got.Name() != "state" {
		t.Fatalf("Get(state) = %v", got)
	}
	if got := r.Get("missing"); got != nil {
		t.Error("expected nil for unregistered component")
	}
}

func TestStartStopOrder(t *testing.T) {
	r := newTestRegistry()
	var started, stopped []string
	for _, name := range []string{"state", "capture", "server"} {
		_ = r.Register(&fakeComponent{name: name, startOrder: &started, stopOrder: &stopped})
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if fmt.Sprint(started) != "[state capture server]" {
		t.Errorf("start order = %v", started)
	}

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if fmt.Sprint(stopped) != "[server capture state]" {
		t.Errorf("stop order = %v", stopped)
	}
}

func TestStartFailureStopsStarted(t *testing.T) {
	r := newTestRegistry()
	var stopped []string
	_ = r.Register(&fakeComponent{name: "state", stopOrder: &stopped})
	_ = r.Register(&fakeComponent{name: "capture", startErr: fmt.Errorf("no device"), stopOrder: &stopped})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected error from StartAll")
	}
	if fmt.Sprint(stopped) != "[state]" {
		t.Errorf("expected only started components to stop, got %v", stopped)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := newTestRegistry()
	var stopped []string
	_ = r.Register(&fakeComponent{name: "state", stopOrder: &stopped})

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(stopped) != 0 {
		t.Errorf("expected 0 stops, got %d", len(stopped))
	}
}

func TestStopAllWithErrors(t *testing.T) {
	r := newTestRegistry()
	_ = r.Register(&fakeComponent{name: "state", stopErr: fmt.Errorf("stop failed")})
	_ = r.StartAll(context.Background())

	if err := r.StopAll(context.Background()); err == nil {
		t.Error("expected error from StopAll")
	}
}

func TestHealthAll(t *testing.T) {
	r := newTestRegistry()
	_ = r.Register(&fakeComponent{name: "state", health: Health{Name: "state", Status: StatusHealthy}})
	_ = r.Register(&fakeComponent{name: "redis", health: Health{Name: "redis", Status: StatusUnhealthy, Message: "timeout"}})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusHealthy || results[1].Status != StatusUnhealthy {
		t.Errorf("unexpected health results: %+v", results)
	}
}

func TestHook(t *testing.T) {
	var calls []string
	h := &Hook{
		ID:      "capture",
		StartFn: func(context.Context) error { calls = append(calls, "start"); return nil },
		StopFn:  func(context.Context) error { calls = append(calls, "stop"); return nil },
	}
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(calls) != "[start stop]" {
		t.Errorf("calls = %v", calls)
	}
	if got := h.Health(ctx); got.Status != StatusHealthy || got.Name != "capture" {
		t.Errorf("default health = %+v", got)
	}

	empty := &Hook{ID: "noop"}
	if err := empty.Start(ctx); err != nil {
		t.Errorf("nil StartFn should be a no-op, got %v", err)
	}
}
