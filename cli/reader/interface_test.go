package reader

import (
	"bytes"
	"io"
	"testing"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/mstream/iox"
	"github.com/pithecene-io/mstream/multipart"
	"github.com/pithecene-io/mstream/sink"
	"github.com/pithecene-io/mstream/stream"
)

func newStore(t *testing.T) *sink.Store {
	t.Helper()
	s, err := sink.NewWithStore(lode.NewMemory(), sink.Config{Backend: sink.BackendMemory, Compression: sink.CompressionLZ4}, nil, nil)
	if err != nil {
		t.Fatalf("NewWithStore failed: %v", err)
	}
	return s
}

func TestStoreReader_ListAndOpen(t *testing.T) {
	store := newStore(t)
	doc, err := multipart.New(multipart.Config{Boundary: "boundary"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(iox.CloseFunc(doc))
	if _, err := doc.Add(stream.Text("bar"), multipart.FieldOptions{Name: "foo", Mime: "text/plain"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	want, _ := doc.Flush()

	for _, name := range []string{"b-doc", "a-doc"} {
		if _, err := store.PutDocument(t.Context(), name, doc); err != nil {
			t.Fatalf("PutDocument failed: %v", err)
		}
	}

	r := NewStoreReader(store)
	items, err := r.List(t.Context())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].Name != "a-doc" || items[1].Name != "b-doc" {
		t.Fatalf("items = %+v", items)
	}
	item := items[0]
	if item.Key != "documents/a-doc.lz4" || item.Fields != 1 || item.Bytes != int64(len(want)) || item.Compression != sink.CompressionLZ4 {
		t.Errorf("item = %+v", item)
	}
	if item.WrittenAt.IsZero() {
		t.Error("WrittenAt not joined from the index")
	}

	rc, err := r.Open(t.Context(), "a-doc")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil || string(got) != string(want) {
		t.Errorf("Open returned %q, %v", got, err)
	}

	view, err := Parse(bytes.NewReader(got), ParseOptions{})
	if err != nil || len(view.Parts) != 1 {
		t.Errorf("stored document does not parse: %v", err)
	}
}

func TestStoreReader_Empty(t *testing.T) {
	items, err := NewStoreReader(newStore(t)).List(t.Context())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %+v", items)
	}
}
