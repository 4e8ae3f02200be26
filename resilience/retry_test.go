package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kbukum/voicememo/errors"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, stderrors.New("busy")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("expected 42 after 3 calls, got %d after %d", got, calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := stderrors.New("locked")
	err := RetryFunc(context.Background(), fastConfig(4), func() error {
		calls++
		return sentinel
	})
	if !stderrors.Is(err, sentinel) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := RetryFunc(context.Background(), fastConfig(5), func() error {
		calls++
		return errors.InvalidInput("handle", "empty")
	})
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error should stop after 1 call, got %d", calls)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var notified int
	cfg := fastConfig(3)
	cfg.OnRetry = func(error, time.Duration) { notified++ }
	_ = RetryFunc(context.Background(), cfg, func() error { return stderrors.New("x") })
	if notified != 2 {
		t.Errorf("expected 2 retry notifications, got %d", notified)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryFunc(ctx, fastConfig(3), func() error { return stderrors.New("x") })
	if err == nil {
		t.Fatal("expected error on canceled context")
	}
}
