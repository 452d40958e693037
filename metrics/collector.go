// Package metrics provides per-process counters for stream containers,
// content-transfer encoding and document storage.
//
// The Collector is a leaf package with no internal dependencies. Containers
// hold an optional *Collector; a nil collector records nothing.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Containers
	PartsAdded    int64
	PartsRemoved  int64
	FieldsAdded   int64
	BytesRead     int64
	Seeks         int64
	BytesReplayed int64

	// Encoding
	BytesEncoded map[string]int64
	EncodeErrors int64

	// Frames
	FramesDecoded     int64
	FrameDecodeErrors int64

	// Storage
	DocumentsWritten      int64
	DocumentWriteFailures int64

	// Dimensions (informational, set at construction)
	StorageBackend string
	Compression    string
}

// Collector accumulates counters.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	partsAdded    int64
	partsRemoved  int64
	fieldsAdded   int64
	bytesRead     int64
	seeks         int64
	bytesReplayed int64

	bytesEncoded map[string]int64
	encodeErrors int64

	framesDecoded     int64
	frameDecodeErrors int64

	documentsWritten      int64
	documentWriteFailures int64

	storageBackend string
	compression    string
}

// NewCollector creates a Collector with dimension labels.
// Both dimensions are optional.
func NewCollector(storageBackend, compression string) *Collector {
	return &Collector{
		bytesEncoded:   make(map[string]int64),
		storageBackend: storageBackend,
		compression:    compression,
	}
}

func (c *Collector) add(counter *int64, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*counter += n
	c.mu.Unlock()
}

// --- Containers ---

// IncPartAdded records a part appended to a concatenator.
func (c *Collector) IncPartAdded() {
	if c == nil {
		return
	}
	c.add(&c.partsAdded, 1)
}

// IncPartRemoved records a part removed from a concatenator.
func (c *Collector) IncPartRemoved() {
	if c == nil {
		return
	}
	c.add(&c.partsRemoved, 1)
}

// IncFieldAdded records a field added to a multipart document.
func (c *Collector) IncFieldAdded() {
	if c == nil {
		return
	}
	c.add(&c.fieldsAdded, 1)
}

// AddBytesRead records bytes returned by composite reads.
func (c *Collector) AddBytesRead(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.add(&c.bytesRead, n)
}

// RecordSeek records one composite seek and the bytes it replayed to
// reach its target.
func (c *Collector) RecordSeek(replayed int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.seeks++
	c.bytesReplayed += replayed
	c.mu.Unlock()
}

// --- Encoding ---

// AddBytesEncoded records encoded output bytes for a transfer encoding.
func (c *Collector) AddBytesEncoded(scheme string, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesEncoded[scheme] += n
	c.mu.Unlock()
}

// IncEncodeErrors records a failed content-transfer encoding.
func (c *Collector) IncEncodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.encodeErrors, 1)
}

// --- Frames ---

// IncFramesDecoded records a successfully decoded field frame.
func (c *Collector) IncFramesDecoded() {
	if c == nil {
		return
	}
	c.add(&c.framesDecoded, 1)
}

// IncFrameDecodeErrors records a field frame decode error.
func (c *Collector) IncFrameDecodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.frameDecodeErrors, 1)
}

// --- Storage ---

// IncDocumentWritten records a document persisted to the store.
func (c *Collector) IncDocumentWritten() {
	if c == nil {
		return
	}
	c.add(&c.documentsWritten, 1)
}

// IncDocumentWriteFailure records a failed document write.
func (c *Collector) IncDocumentWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.documentWriteFailures, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded := make(map[string]int64, len(c.bytesEncoded))
	for k, v := range c.bytesEncoded {
		encoded[k] = v
	}

	return Snapshot{
		PartsAdded:    c.partsAdded,
		PartsRemoved:  c.partsRemoved,
		FieldsAdded:   c.fieldsAdded,
		BytesRead:     c.bytesRead,
		Seeks:         c.seeks,
		BytesReplayed: c.bytesReplayed,

		BytesEncoded: encoded,
		EncodeErrors: c.encodeErrors,

		FramesDecoded:     c.framesDecoded,
		FrameDecodeErrors: c.frameDecodeErrors,

		DocumentsWritten:      c.documentsWritten,
		DocumentWriteFailures: c.documentWriteFailures,

		StorageBackend: c.storageBackend,
		Compression:    c.compression,
	}
}
