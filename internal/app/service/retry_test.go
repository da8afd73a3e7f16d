package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/logger"
)

func recordingPolicy() (*RetryPolicy, *[]time.Duration) {
	var delays []time.Duration
	p := NewRetryPolicy(0, 0, 0, logger.NewNop())
	p.Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return p, &delays
}

func statusErr(status int) error {
	return &entity.ProviderError{Provider: "test", Status: status, Kind: entity.KindStatus}
}

func TestRetryDelays(t *testing.T) {
	p := NewRetryPolicy(0, 0, 0, nil)
	want := []time.Duration{300 * time.Millisecond, 600 * time.Millisecond, 1200 * time.Millisecond, 2400 * time.Millisecond, 2400 * time.Millisecond}
	for n, w := range want {
		if got := p.Delay(n); got != w {
			t.Errorf("Delay(%d) = %v, want %v", n, got, w)
		}
	}
}

func TestRetryTwice429ThenSuccess(t *testing.T) {
	p, delays := recordingPolicy()
	calls := 0
	got, err := Retry(context.Background(), p, "balance", func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", statusErr(429)
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Retry() = %q, %v", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(*delays) != 2 || (*delays)[0] != 300*time.Millisecond || (*delays)[1] != 600*time.Millisecond {
		t.Errorf("delays = %v, want [300ms 600ms]", *delays)
	}
}

func TestRetryNonRetryableFailsImmediately(t *testing.T) {
	p, delays := recordingPolicy()
	calls := 0
	err := p.Do(context.Background(), "balance", func(context.Context) error {
		calls++
		return statusErr(404)
	})
	var perr *entity.ProviderError
	if !errors.As(err, &perr) || perr.Status != 404 {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 || len(*delays) != 0 {
		t.Errorf("calls = %d, delays = %v", calls, *delays)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	p, delays := recordingPolicy()
	calls := 0
	last := &entity.ProviderError{Provider: "test", Kind: entity.KindTimeout, Message: "third"}
	err := p.Do(context.Background(), "prices", func(context.Context) error {
		calls++
		if calls == 3 {
			return last
		}
		return statusErr(503)
	})
	if err != last {
		t.Errorf("err = %v, want the last error", err)
	}
	if calls != 3 || len(*delays) != 2 {
		t.Errorf("calls = %d, delays = %v", calls, *delays)
	}
}

func TestRetryConfigErrorNotRetried(t *testing.T) {
	p, delays := recordingPolicy()
	calls := 0
	err := p.Do(context.Background(), "balance", func(context.Context) error {
		calls++
		return &entity.ConfigError{Field: "moralis.apiKey", Message: "missing"}
	})
	if err == nil || calls != 1 || len(*delays) != 0 {
		t.Errorf("err = %v, calls = %d, delays = %v", err, calls, *delays)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	p := NewRetryPolicy(0, time.Hour, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "balance", func(context.Context) error {
			calls++
			return statusErr(500)
		})
	}()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not honour cancellation")
	}
}
