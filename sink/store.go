package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/mstream/log"
	"github.com/pithecene-io/mstream/metrics"
	"github.com/pithecene-io/mstream/stream"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Compression schemes for stored documents.
const (
	CompressionNone = "none"
	CompressionLZ4  = "lz4"
)

// documentsPrefix is the key prefix of stored documents.
const documentsPrefix = "documents/"

// lz4Suffix marks compressed document keys.
const lz4Suffix = ".lz4"

// Config configures a Store.
type Config struct {
	// Backend is "fs", "s3" or "memory".
	Backend string
	// Path is the root directory (fs) or "bucket/prefix" (s3).
	Path string
	// Region is the AWS region (s3, optional).
	Region string
	// Endpoint is a custom S3 endpoint for S3-compatible providers.
	Endpoint string
	// UsePathStyle forces path-style S3 addressing.
	UsePathStyle bool
	// Compression is "none" (default) or "lz4".
	Compression string
}

// Validate checks the backend and compression names.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFS, BackendS3:
		if c.Path == "" {
			return fmt.Errorf("storage path is required for backend %q", c.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q (want fs, s3 or memory)", c.Backend)
	}
	switch c.Compression {
	case "", CompressionNone, CompressionLZ4:
	default:
		return fmt.Errorf("unknown compression %q (want none or lz4)", c.Compression)
	}
	return nil
}

func (c *Config) compressed() bool {
	return c.Compression == CompressionLZ4
}

// Document is a serializable multipart document.
type Document interface {
	io.WriterTo
	Boundary() string
	ContentType() string
	Len() int
}

// Store persists documents under documents/<name> and records each write in
// a lode index dataset.
type Store struct {
	store   lode.Store
	index   lode.Dataset
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// New opens the store selected by cfg.
func New(ctx context.Context, cfg Config, logger *log.Logger, collector *metrics.Collector) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var factory lode.StoreFactory
	switch cfg.Backend {
	case BackendFS:
		factory = lode.NewFSFactory(cfg.Path)
	case BackendS3:
		s3cfg := S3ConfigFromPath(cfg.Path, cfg.Region, cfg.Endpoint, cfg.UsePathStyle)
		f, err := newS3Factory(ctx, s3cfg)
		if err != nil {
			return nil, wrap(err, "init", cfg.Path)
		}
		factory = f
	default:
		factory = lode.NewMemoryFactory()
	}

	store, err := factory()
	if err != nil {
		return nil, wrap(err, "init", cfg.Path)
	}
	return NewWithStore(store, cfg, logger, collector)
}

// NewWithStore wraps an existing lode Store.
func NewWithStore(store lode.Store, cfg Config, logger *log.Logger, collector *metrics.Collector) (*Store, error) {
	index, err := newIndex(store)
	if err != nil {
		return nil, wrap(err, "init", indexDataset)
	}
	return &Store{
		store:   store,
		index:   index,
		cfg:     cfg,
		logger:  logger.Named("sink"),
		metrics: collector,
		now:     time.Now,
	}, nil
}

// ValidateName checks that name can be used as a document key: non-empty,
// no path separators, no "..".
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// DocumentKey returns the store key of a document.
func (s *Store) DocumentKey(name string) string {
	key := documentsPrefix + name
	if s.cfg.compressed() {
		key += lz4Suffix
	}
	return key
}

// PutDocument serializes doc and stores it under name. Returns the index
// record of the write.
func (s *Store) PutDocument(ctx context.Context, name string, doc Document) (*Record, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	key := s.DocumentKey(name)

	var raw bytes.Buffer
	n, err := doc.WriteTo(&raw)
	if err != nil {
		s.metrics.IncDocumentWriteFailure()
		return nil, err
	}

	body := raw.Bytes()
	if s.cfg.compressed() {
		if body, err = compress(body); err != nil {
			s.metrics.IncDocumentWriteFailure()
			return nil, wrap(err, "put", key)
		}
	}

	if err := s.store.Put(ctx, key, bytes.NewReader(body)); err != nil {
		s.metrics.IncDocumentWriteFailure()
		return nil, wrap(err, "put", key)
	}

	rec := &Record{
		Name:        name,
		Key:         key,
		Boundary:    doc.Boundary(),
		ContentType: doc.ContentType(),
		Fields:      doc.Len(),
		Bytes:       n,
		StoredBytes: int64(len(body)),
		Compression: s.compression(),
		WrittenAt:   s.now().UTC(),
	}
	if err := s.appendIndex(ctx, rec); err != nil {
		s.metrics.IncDocumentWriteFailure()
		return nil, err
	}

	s.metrics.IncDocumentWritten()
	s.logger.Info("document stored", map[string]any{
		"key":          key,
		"bytes":        n,
		"stored_bytes": len(body),
	})
	return rec, nil
}

func (s *Store) compression() string {
	if s.cfg.compressed() {
		return CompressionLZ4
	}
	return CompressionNone
}

// GetDocument opens a stored document, decompressing it when needed.
func (s *Store) GetDocument(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	key := s.DocumentKey(name)
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, wrap(err, "get", key)
	}
	if s.cfg.compressed() {
		return decompressReader(rc), nil
	}
	return rc, nil
}

// Open returns the object at key as a non-seekable stream, for use as a
// field payload. The key is used as is, outside the documents prefix.
func (s *Store) Open(ctx context.Context, key string) (*stream.Resource, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, wrap(err, "get", key)
	}
	// Backends differ in whether Get returns a seeker; always read once.
	r, err := stream.New(struct{ io.ReadCloser }{rc}, stream.Config{})
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return r, nil
}

// Exists reports whether a document is stored under name.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	key := s.DocumentKey(name)
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		return false, wrap(err, "exists", key)
	}
	return ok, nil
}

// List returns the names of stored documents.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx, documentsPrefix)
	if err != nil {
		if errors.Is(classifyError(err), ErrNotFound) {
			return nil, nil
		}
		return nil, wrap(err, "list", documentsPrefix)
	}
	// Only keys GetDocument can open under the active compression.
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, documentsPrefix)
		if s.cfg.compressed() {
			var ok bool
			if name, ok = strings.CutSuffix(name, lz4Suffix); !ok {
				continue
			}
		} else if strings.HasSuffix(name, lz4Suffix) {
			continue
		}
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a stored document.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	key := s.DocumentKey(name)
	return wrap(s.store.Delete(ctx, key), "delete", key)
}
