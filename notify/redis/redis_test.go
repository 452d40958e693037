package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/pithecene-io/mstream/notify"
)

func testEvent() *notify.DocumentStored {
	return &notify.DocumentStored{
		EventVersion: "0.3.0",
		EventType:    notify.EventDocumentStored,
		EventID:      "c0ffee",
		Name:         "upload",
		Key:          "documents/upload",
		Backend:      "fs",
		ContentType:  "multipart/form-data; boundary=b",
		Fields:       1,
		Bytes:        99,
		StoredBytes:  99,
		Compression:  "none",
		Timestamp:    "2026-03-01T12:00:00Z",
	}
}

// asyncReceive reads one message in the background. It must be started
// before Publish: miniredis delivers synchronously.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{}
	}
}

func TestPublish(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    string
	}{
		{"default channel", "", DefaultChannel},
		{"custom channel", "uploads:stored", "uploads:stored"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			n, err := New(Config{URL: "redis://" + mr.Addr(), Channel: tt.channel})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer func() { _ = n.Close() }()

			sub := mr.NewSubscriber()
			sub.Subscribe(tt.want)
			ch := asyncReceive(sub)

			if err := n.Publish(t.Context(), testEvent()); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			msg := waitMessage(t, ch)
			if msg.Channel != tt.want {
				t.Errorf("channel = %q, want %q", msg.Channel, tt.want)
			}
			var got notify.DocumentStored
			if err := json.Unmarshal([]byte(msg.Message), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != *testEvent() {
				t.Errorf("event = %+v", got)
			}
		})
	}
}

func TestPublish_ExhaustsRetries(t *testing.T) {
	n, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 2, Timeout: 100 * time.Millisecond, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = n.Close() }()

	if err := n.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	n, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 5, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = n.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	if err := n.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestPublish_AfterClose(t *testing.T) {
	mr := miniredis.RunT(t)
	n, err := New(Config{URL: "redis://" + mr.Addr(), Retries: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	start := time.Now()
	if err := n.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after close")
	}
	// A closed client is not retried.
	if time.Since(start) > notify.DefaultBackoff {
		t.Errorf("publish on a closed client was retried")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing URL", Config{}, true},
		{"invalid URL", Config{URL: "not-a-redis-url"}, true},
		{"negative retries", Config{URL: "redis://localhost:6379", Retries: -1}, true},
		{"valid", Config{URL: "redis://localhost:6379"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() err = %v, wantErr %v", err, tt.wantErr)
			}
			if n != nil {
				_ = n.Close()
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	n, err := New(Config{URL: "redis://localhost:6379"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = n.Close() }()

	if n.config.Channel != DefaultChannel || n.config.Timeout != DefaultTimeout || n.config.Backoff != notify.DefaultBackoff {
		t.Errorf("defaults not applied: %+v", n.config)
	}
}
