package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/mstream/iox"
	"github.com/pithecene-io/mstream/notify"
)

func testEvent() *notify.DocumentStored {
	return &notify.DocumentStored{
		EventType: notify.EventDocumentStored,
		EventID:   "c0ffee",
		Name:      "upload",
		Key:       "documents/upload",
		Fields:    1,
		Bytes:     99,
	}
}

func newNotifier(t *testing.T, cfg Config) *Notifier {
	t.Helper()
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { iox.DiscardClose(n) })
	return n
}

func TestPublish_Success(t *testing.T) {
	var received notify.DocumentStored
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s", ct)
		}
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	n := newNotifier(t, Config{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer t"}})
	if err := n.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if received != *testEvent() {
		t.Errorf("received %+v", received)
	}
	if auth != "Bearer t" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		failCode  int
		failTimes int32
		retries   int
		wantCalls int32
		wantErr   bool
	}{
		{"2xx", 0, 0, 3, 1, false},
		{"5xx then ok", http.StatusBadGateway, 2, 3, 3, false},
		{"5xx exhausts", http.StatusInternalServerError, 100, 2, 3, true},
		{"4xx not retried", http.StatusForbidden, 100, 3, 1, true},
		{"404 not retried", http.StatusNotFound, 100, 3, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if calls.Add(1) <= tt.failTimes {
					w.WriteHeader(tt.failCode)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer ts.Close()

			n := newNotifier(t, Config{URL: ts.URL, Retries: tt.retries})
			err := n.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	n := newNotifier(t, Config{URL: ts.URL, Timeout: 10 * time.Second})
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	if err := n.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}
	n, err := New(Config{URL: "http://example.com", Retries: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n.config.Timeout != DefaultTimeout || n.config.Retries != 5 || n.config.Backoff != notify.DefaultBackoff {
		t.Errorf("unexpected config: %+v", n.config)
	}
}
