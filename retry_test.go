package satchel

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRetryerSucceedsFirstTry(t *testing.T) {
	r := NewRetryer(fastRetryConfig(3))
	res := r.Do(context.Background(), func() error { return nil })
	if res.Attempts != 1 || res.LastErr != nil {
		t.Errorf("result = %+v, want 1 attempt, no error", res)
	}
}

func TestRetryerRecoversAfterFailures(t *testing.T) {
	r := NewRetryer(fastRetryConfig(5))
	calls := 0
	res := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if res.LastErr != nil {
		t.Errorf("LastErr = %v, want nil", res.LastErr)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
}

func TestRetryerExhaustsAttempts(t *testing.T) {
	r := NewRetryer(fastRetryConfig(3))
	boom := errors.New("boom")
	calls := 0
	res := r.Do(context.Background(), func() error {
		calls++
		return boom
	})
	if calls != 3 {
		t.Errorf("op ran %d times, want 3", calls)
	}
	if !errors.Is(res.LastErr, boom) {
		t.Errorf("LastErr = %v, want boom", res.LastErr)
	}
}

func TestRetryerRespectsRetryIf(t *testing.T) {
	cfg := fastRetryConfig(5)
	cfg.RetryIf = IsRetryable
	r := NewRetryer(cfg)

	calls := 0
	res := r.Do(context.Background(), func() error {
		calls++
		return context.Canceled
	})
	if calls != 1 {
		t.Errorf("terminal error retried %d times, want 1", calls)
	}
	if !errors.Is(res.LastErr, context.Canceled) {
		t.Errorf("LastErr = %v", res.LastErr)
	}
}

func TestRetryerStopsOnContextCancel(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts:    10,
		InitialBackoff: time.Hour, // would hang without cancellation
	})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan RetryResult, 1)
	go func() {
		done <- r.Do(ctx, func() error { return errors.New("fail") })
	}()
	cancel()

	select {
	case res := <-done:
		if !errors.Is(res.LastErr, context.Canceled) {
			t.Errorf("LastErr = %v, want context.Canceled", res.LastErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do should return promptly after cancellation")
	}
}

func TestRetryerDoWithResult(t *testing.T) {
	r := NewRetryer(fastRetryConfig(3))
	calls := 0
	v, res := r.DoWithResult(context.Background(), func() (any, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("transient")
		}
		return 42, nil
	})
	if res.LastErr != nil {
		t.Fatalf("LastErr = %v", res.LastErr)
	}
	if v != 42 {
		t.Errorf("value = %v, want 42", v)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if IsRetryable(context.Canceled) || IsRetryable(context.DeadlineExceeded) {
		t.Error("context errors should be terminal")
	}
	if !IsRetryable(errors.New("transient")) {
		t.Error("ordinary errors should be retryable")
	}
}
