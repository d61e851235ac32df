package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
)

type testNetError struct {
	timeout   bool
	temporary bool
}

func (e testNetError) Error() string   { return "net error" }
func (e testNetError) Timeout() bool   { return e.timeout }
func (e testNetError) Temporary() bool { return e.temporary }

func TestDo_RetriesOnRetryableError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, IsRetryable, func() error {
		attempts++
		return testNetError{timeout: true}
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_NoRetryOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, IsRetryable, func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, IsRetryable, func() error {
		attempts++
		if attempts == 1 {
			return testNetError{temporary: true}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, Config{MaxAttempts: 3}, IsRetryable, func() error {
		attempts++
		return testNetError{timeout: true}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", attempts)
	}
}

func TestIsRetryable_ContextDeadline(t *testing.T) {
	if !IsRetryable(context.DeadlineExceeded) {
		t.Fatal("expected context deadline to be retryable")
	}
}

func TestBackoffDelay_NoBaseDelay(t *testing.T) {
	if delay := backoffDelay(0, time.Second, 1); delay != 0 {
		t.Fatalf("expected zero delay, got %v", delay)
	}
}

func TestDo_PermanentStopsRetries(t *testing.T) {
	boom := errors.New("bad request")
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 5}, func(error) bool { return true }, func() error {
		attempts++
		return Permanent(boom)
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_OnRetryCalledBetweenAttempts(t *testing.T) {
	var seen []int
	cfg := Config{
		MaxAttempts: 3,
		OnRetry: func(attempt int, _ error, _ time.Duration) {
			seen = append(seen, attempt)
		},
	}
	_ = Do(context.Background(), cfg, IsRetryable, func() error {
		return testNetError{timeout: true}
	})

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("expected OnRetry for attempts [1 2], got %v", seen)
	}
}

func TestIsRetryable_RateLimitedIsNotRetried(t *testing.T) {
	err := fmt.Errorf("list servers: %w", domain.ErrRateLimited)
	if IsRetryable(err) {
		t.Fatal("expected rate-limited error to be non-retryable")
	}
}
