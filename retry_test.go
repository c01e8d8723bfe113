package bookmarkdp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		count        int
		failures     int
		want         string
		wantErr      string
		wantAttempts int
	}{
		{name: "FirstAttempt", count: 2, failures: 0, want: "ok", wantAttempts: 1},
		{name: "ThirdAttempt", count: 2, failures: 2, want: "ok", wantAttempts: 3},
		{name: "Exhausted", count: 2, failures: 3, wantErr: "attempt 3", wantAttempts: 3},
		{name: "NoRetries", count: 0, failures: 1, wantErr: "attempt 1", wantAttempts: 1},
		{name: "NegativeCount", count: -1, failures: 1, wantErr: "attempt 1", wantAttempts: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			attempts := 0
			var errs []error
			res, err := Retry(context.Background(), RetryPolicy{Count: tt.count, Delay: time.Millisecond, Logf: t.Logf}, tt.name,
				func(context.Context) (string, error) {
					attempts++
					if attempts <= tt.failures {
						err := fmt.Errorf("attempt %d", attempts)
						errs = append(errs, err)
						return "", err
					}
					return "ok", nil
				})
			if attempts != tt.wantAttempts {
				t.Fatalf("want %d attempts, got %d", tt.wantAttempts, attempts)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("got error: %v", err)
				}
				if res != tt.want {
					t.Fatalf("want: %q, got: %q", tt.want, res)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("want error %q, got: %v", tt.wantErr, err)
			}
			// the last error is returned as is
			if last := errs[len(errs)-1]; err != last {
				t.Fatalf("want the last error unmodified, got %#v", err)
			}
		})
	}
}

func TestRetryFixedDelay(t *testing.T) {
	t.Parallel()

	const delay = 40 * time.Millisecond
	var stamps []time.Time
	_, _ = Retry(context.Background(), RetryPolicy{Count: 2, Delay: delay}, "delay", func(context.Context) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, errors.New("fail")
	})
	if len(stamps) != 3 {
		t.Fatalf("want 3 attempts, got %d", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < delay || gap > 4*delay {
			t.Errorf("gap %d: want about %v, got %v", i, delay, gap)
		}
	}
}

func TestRetryContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := Retry(ctx, RetryPolicy{Count: 5, Delay: time.Hour}, "cancel", func(context.Context) (int, error) {
		attempts++
		cancel()
		return 0, errors.New("fail")
	})
	if err != context.Canceled {
		t.Fatalf("want %v, got %v", context.Canceled, err)
	}
	if attempts != 1 {
		t.Fatalf("want 1 attempt, got %d", attempts)
	}
}
