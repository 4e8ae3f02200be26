package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/voicememo/component"
	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
)

type tierState struct {
	Tier  string    `json:"tier"`
	Since time.Time `json:"since"`
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client, err := New(Config{Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mini
}

func TestTypedStore_SaveAndLoad(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[tierState](client, "")
	ctx := context.Background()

	since := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, "voicememo/entitlement/tier", &tierState{Tier: "pro", Since: since}, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !mini.Exists("voicememo:voicememo/entitlement/tier") {
		t.Error("expected key under the default prefix")
	}

	got, err := store.Load(ctx, "voicememo/entitlement/tier")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || got.Tier != "pro" || !got.Since.Equal(since) {
		t.Fatalf("Load = %+v", got)
	}
}

func TestTypedStore_LoadMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[tierState](client, "test")

	got, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestTypedStore_TTL(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[tierState](client, "test")
	ctx := context.Background()

	if err := store.Save(ctx, "k", &tierState{Tier: "free"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if ttl := mini.TTL("test:k"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	mini.FastForward(2 * time.Minute)
	if got, _ := store.Load(ctx, "k"); got != nil {
		t.Errorf("expected expiry, got %+v", got)
	}
}

func TestTypedStore_DeleteAndSaveNil(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[tierState](client, "test")
	ctx := context.Background()

	_ = store.Save(ctx, "a", &tierState{Tier: "pro"}, 0)
	_ = store.Save(ctx, "b", &tierState{Tier: "pro"}, 0)

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "b", nil, 0); err != nil {
		t.Fatal(err)
	}
	if mini.Exists("test:a") || mini.Exists("test:b") {
		t.Error("expected both keys removed")
	}
	if err := store.Delete(ctx, "never-written"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestTypedStore_CorruptValue(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[tierState](client, "test")
	_ = mini.Set("test:bad", "{not json")

	_, err := store.Load(context.Background(), "bad")
	if !apperrors.IsCode(err, apperrors.ErrCodeInternal) {
		t.Errorf("expected INTERNAL error, got %v", err)
	}
}

func TestTypedStore_ServerDown(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[tierState](client, "test")
	mini.Close()

	err := store.Save(context.Background(), "k", &tierState{Tier: "pro"}, 0)
	if !apperrors.IsCode(err, apperrors.ErrCodePersistence) {
		t.Errorf("expected PERSISTENCE error, got %v", err)
	}
}

func TestComponentLifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	c := NewComponent(Config{Addr: mini.Addr()}, logger.Nop())
	ctx := context.Background()

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %+v", h)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
