package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/pithecene-io/mstream/sink"
)

func TestNewDocumentStored(t *testing.T) {
	rec := &sink.Record{
		Name:        "upload",
		Key:         "documents/upload.lz4",
		ContentType: "multipart/form-data; boundary=b",
		Fields:      2,
		Bytes:       120,
		StoredBytes: 90,
		Compression: sink.CompressionLZ4,
		WrittenAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
	}
	ev := NewDocumentStored(rec, sink.BackendS3, "bucket/prefix")

	if ev.EventType != EventDocumentStored || ev.EventID == "" {
		t.Errorf("unexpected event header: %+v", ev)
	}
	if ev.Timestamp != "2026-03-01T11:00:00Z" {
		t.Errorf("Timestamp = %q", ev.Timestamp)
	}
	if ev.Key != rec.Key || ev.Fields != 2 || ev.StoredBytes != 90 || ev.Backend != "s3" {
		t.Errorf("record not carried over: %+v", ev)
	}
	if other := NewDocumentStored(rec, "", ""); other.EventID == ev.EventID {
		t.Error("event IDs must be unique")
	}
}

func TestRetry(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		retries   int
		failures  int
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{"first try", 3, 0, false, 1, false},
		{"succeeds after retries", 3, 2, false, 3, false},
		{"exhausts retries", 2, 10, false, 3, true},
		{"no retries", 0, 10, false, 1, true},
		{"permanent stops", 3, 10, true, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(t.Context(), "test", tt.retries, time.Millisecond, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(boom)
					}
					return boom
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, boom) {
				t.Errorf("cause lost: %v", err)
			}
		})
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := Retry(ctx, "test", 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}

type fakeNotifier struct {
	err       error
	published []*DocumentStored
	closed    bool
}

func (f *fakeNotifier) Publish(_ context.Context, ev *DocumentStored) error {
	f.published = append(f.published, ev)
	return f.err
}

func (f *fakeNotifier) Close() error {
	f.closed = true
	return f.err
}

func TestPublishAll(t *testing.T) {
	ok := &fakeNotifier{}
	bad := &fakeNotifier{err: errors.New("down")}
	worse := &fakeNotifier{err: errors.New("gone")}
	ev := &DocumentStored{Name: "a"}

	err := PublishAll(t.Context(), []Notifier{bad, ok, worse}, ev)
	if got := len(multierr.Errors(err)); got != 2 {
		t.Errorf("got %d errors, want 2: %v", got, err)
	}
	for _, n := range []*fakeNotifier{ok, bad, worse} {
		if len(n.published) != 1 {
			t.Errorf("every notifier must see the event, got %d", len(n.published))
		}
	}

	if err := CloseAll([]Notifier{ok, bad}); err == nil {
		t.Error("CloseAll must report close failures")
	}
	if !ok.closed || !bad.closed {
		t.Error("CloseAll must close every notifier")
	}
}
