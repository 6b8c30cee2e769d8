package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()
	fatal := errors.New("bad request")

	tests := []struct {
		name      string
		fails     int
		err       error
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{"success", 0, nil, 3, 1, false},
		{"recovers", 2, &RetryableError{Err: errors.New("reset")}, 3, 3, false},
		{"exhausted", 5, &RetryableError{Err: errors.New("reset")}, 3, 3, true},
		{"fatal stops", 5, fatal, 3, 1, true},
		{"zero attempts runs once", 5, fatal, 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(ctx, tt.attempts, time.Millisecond, func() error {
				calls++
				if calls <= tt.fails {
					return tt.err
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, time.Hour, func() error {
		return &RetryableError{Err: errors.New("reset")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRetryHonorsRetryAfter(t *testing.T) {
	limited := &RetryableError{Err: &StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 50 * time.Millisecond}}

	calls := 0
	start := time.Now()
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		if calls == 1 {
			return limited
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("retried after %v, want at least the Retry-After delay", elapsed)
	}

	tests := []struct {
		name  string
		err   error
		delay time.Duration
		want  time.Duration
	}{
		{"no header", &RetryableError{Err: errors.New("reset")}, time.Second, time.Second},
		{"longer header", limited, time.Millisecond, 50 * time.Millisecond},
		{"shorter header", limited, time.Second, time.Second},
		{"capped", &StatusError{RetryAfter: time.Hour}, time.Second, MaxRetryAfter},
	}
	for _, tt := range tests {
		if got := wait(tt.err, tt.delay); got != tt.want {
			t.Errorf("%s: wait() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		retryable bool
	}{
		{http.StatusOK, false, false},
		{http.StatusNotFound, true, false},
		{http.StatusTooManyRequests, true, true},
		{http.StatusBadGateway, true, true},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(tt.status)
		}))
		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		srv.Close()

		err = CheckStatus(resp)
		if (err != nil) != tt.wantErr {
			t.Errorf("status %d: err = %v", tt.status, err)
			continue
		}
		if isRetryable(err) != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, isRetryable(err), tt.retryable)
		}
		var se *StatusError
		if tt.wantErr && (!errors.As(err, &se) || se.StatusCode != tt.status || se.RetryAfter != 2*time.Second) {
			t.Errorf("status %d: StatusError = %+v", tt.status, se)
		}
	}
}
