package reader

import (
	"context"
	"io"

	"github.com/pithecene-io/mstream/sink"
)

// Reader abstracts read-only access to stored documents.
type Reader interface {
	// List returns the stored documents, sorted by name.
	List(ctx context.Context) ([]ListItem, error)
	// Open returns the serialized document stored under name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// StoreReader reads documents from a sink.Store.
type StoreReader struct {
	store *sink.Store
}

var _ Reader = (*StoreReader)(nil)

// NewStoreReader creates a reader over store.
func NewStoreReader(store *sink.Store) *StoreReader {
	return &StoreReader{store: store}
}

// List joins the stored document names with their latest index record.
// A document without an index record is listed with its key only.
func (r *StoreReader) List(ctx context.Context) ([]ListItem, error) {
	names, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	records, err := r.store.Records(ctx)
	if err != nil {
		return nil, err
	}

	// Records are oldest first, so later writes win.
	latest := make(map[string]*sink.Record, len(records))
	for _, rec := range records {
		latest[rec.Name] = rec
	}

	items := make([]ListItem, 0, len(names))
	for _, name := range names {
		item := ListItem{Name: name, Key: r.store.DocumentKey(name)}
		if rec, ok := latest[name]; ok {
			item.ContentType = rec.ContentType
			item.Fields = rec.Fields
			item.Bytes = rec.Bytes
			item.StoredBytes = rec.StoredBytes
			item.Compression = rec.Compression
			item.WrittenAt = rec.WrittenAt
		}
		items = append(items, item)
	}
	return items, nil
}

// Open returns the stored document, decompressed.
func (r *StoreReader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return r.store.GetDocument(ctx, name)
}
