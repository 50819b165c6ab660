package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

var fastRetry = RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newRetryClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/api/", Retry: fastRetry})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGetRetriesGatewayErrors(t *testing.T) {
	var hits atomic.Int32
	c := newRetryClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("true"))
	})
	ok, err := c.IsVerified(context.Background(), 7)
	if err != nil || !ok {
		t.Fatalf("IsVerified = %v, %v", ok, err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestRetryGivesUp(t *testing.T) {
	var hits atomic.Int32
	c := newRetryClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.ListUsers(context.Background(), 7, protocol.UsersParams{Page: 1, PerPage: 5}); StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("err = %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 1 + 2 retries", hits.Load())
	}
}

func TestNoRetryForFinalAnswers(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		code int
	}{
		{"get 404", func(c *Client) error { _, err := c.OwnerBots(context.Background(), "o"); return err }, http.StatusNotFound},
		{"get 500", func(c *Client) error { _, err := c.OwnerBots(context.Background(), "o"); return err }, http.StatusInternalServerError},
		{"patch 503", func(c *Client) error { return c.Logout(context.Background(), 7) }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			c := newRetryClient(t, func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.code)
			})
			if err := tt.call(c); StatusCode(err) != tt.code {
				t.Fatalf("err = %v", err)
			}
			if hits.Load() != 1 {
				t.Errorf("hits = %d, want 1", hits.Load())
			}
		})
	}
}

func TestBackoffWithJitter(t *testing.T) {
	base, maxDelay := 100*time.Millisecond, time.Second
	for attempt, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, time.Second, time.Second} {
		got := backoffWithJitter(base, maxDelay, attempt)
		if got < want*3/4 || got > want*5/4 {
			t.Errorf("attempt %d: delay %v outside %v ±25%%", attempt, got, want)
		}
	}
}
