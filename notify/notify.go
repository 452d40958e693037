// Package notify publishes document store events to downstream systems.
//
// A Notifier is opened per build and receives one DocumentStored event for
// every document written to the store.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pithecene-io/mstream/sink"
	"github.com/pithecene-io/mstream/types"
)

// EventDocumentStored is the event_type of DocumentStored.
const EventDocumentStored = "document_stored"

// DefaultBackoff is the delay before the first retry. It doubles on every
// further attempt.
const DefaultBackoff = 500 * time.Millisecond

// DocumentStored is the payload published after a document is stored.
type DocumentStored struct {
	EventVersion string `json:"event_version"`
	EventType    string `json:"event_type"`
	EventID      string `json:"event_id"`
	Name         string `json:"name"`
	Key          string `json:"key"`
	Backend      string `json:"backend"`
	StoragePath  string `json:"storage_path,omitempty"`
	ContentType  string `json:"content_type"`
	Fields       int    `json:"fields"`
	Bytes        int64  `json:"bytes"`
	StoredBytes  int64  `json:"stored_bytes"`
	Compression  string `json:"compression"`
	// Timestamp is the write time, RFC 3339 in UTC.
	Timestamp string `json:"timestamp"`
}

// NewDocumentStored builds the event of an index record.
func NewDocumentStored(rec *sink.Record, backend, storagePath string) *DocumentStored {
	return &DocumentStored{
		EventVersion: types.Version,
		EventType:    EventDocumentStored,
		EventID:      uuid.NewString(),
		Name:         rec.Name,
		Key:          rec.Key,
		Backend:      backend,
		StoragePath:  storagePath,
		ContentType:  rec.ContentType,
		Fields:       rec.Fields,
		Bytes:        rec.Bytes,
		StoredBytes:  rec.StoredBytes,
		Compression:  rec.Compression,
		Timestamp:    rec.WrittenAt.UTC().Format(time.RFC3339),
	}
}

// Notifier publishes events to one downstream system.
type Notifier interface {
	// Publish must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *DocumentStored) error
	Close() error
}

// PublishAll publishes event to every notifier and aggregates failures.
func PublishAll(ctx context.Context, notifiers []Notifier, event *DocumentStored) error {
	var errs error
	for _, n := range notifiers {
		errs = multierr.Append(errs, n.Publish(ctx, event))
	}
	return errs
}

// CloseAll closes every notifier and aggregates failures.
func CloseAll(notifiers []Notifier) error {
	var errs error
	for _, n := range notifiers {
		errs = multierr.Append(errs, n.Close())
	}
	return errs
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls attempt up to 1+retries times with exponential backoff
// starting at base. It stops early on success, on a Permanent error and on
// context cancellation. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, base time.Duration, attempt func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(base << uint(i-1)):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: non-retriable error: %w", name, perm.err)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
