package sink

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/justapithecus/lode/lode"
)

// indexDataset is the lode dataset recording document writes.
const indexDataset = "mstream-index"

// RecordKindDocument is the record_kind of index records.
const RecordKindDocument = "document"

// Record is the index entry of one stored document.
type Record struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Boundary    string    `json:"boundary"`
	ContentType string    `json:"content_type"`
	Fields      int       `json:"fields"`
	Bytes       int64     `json:"bytes"`
	StoredBytes int64     `json:"stored_bytes"`
	Compression string    `json:"compression"`
	WrittenAt   time.Time `json:"written_at"`
}

// DeriveDay computes the partition day of a write.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func newIndex(store lode.Store) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(indexDataset),
		func() (lode.Store, error) { return store, nil },
		lode.WithHiveLayout("day"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

func (r *Record) toMap() map[string]any {
	return map[string]any{
		"record_kind":  RecordKindDocument,
		"name":         r.Name,
		"key":          r.Key,
		"boundary":     r.Boundary,
		"content_type": r.ContentType,
		"fields":       r.Fields,
		"bytes":        r.Bytes,
		"stored_bytes": r.StoredBytes,
		"compression":  r.Compression,
		"written_at":   r.WrittenAt.Format(time.RFC3339Nano),
		"day":          DeriveDay(r.WrittenAt),
	}
}

func recordFromMap(m map[string]any) (*Record, bool) {
	if m["record_kind"] != RecordKindDocument {
		return nil, false
	}
	r := &Record{
		Name:        toString(m["name"]),
		Key:         toString(m["key"]),
		Boundary:    toString(m["boundary"]),
		ContentType: toString(m["content_type"]),
		Fields:      int(toInt64(m["fields"])),
		Bytes:       toInt64(m["bytes"]),
		StoredBytes: toInt64(m["stored_bytes"]),
		Compression: toString(m["compression"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, toString(m["written_at"])); err == nil {
		r.WrittenAt = ts
	}
	return r, true
}

func (s *Store) appendIndex(ctx context.Context, rec *Record) error {
	if _, err := s.index.Write(ctx, []any{rec.toMap()}, lode.Metadata{}); err != nil {
		return wrap(err, "index", indexDataset)
	}
	return nil
}

// Records returns the index records of every write, oldest first. A
// document written twice has two records.
func (s *Store) Records(ctx context.Context) ([]*Record, error) {
	snapshots, err := s.index.Snapshots(ctx)
	if err != nil {
		if isEmptyDataset(err) {
			return nil, nil
		}
		return nil, wrap(err, "index", indexDataset+"/snapshots")
	}

	var records []*Record
	for _, snap := range snapshots {
		data, err := s.index.Read(ctx, snap.ID)
		if err != nil {
			return nil, wrap(err, "index", fmt.Sprintf("%s/snapshot/%s", indexDataset, snap.ID))
		}
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if rec, ok := recordFromMap(m); ok {
				records = append(records, rec)
			}
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].WrittenAt.Before(records[j].WrittenAt)
	})
	return records, nil
}

func isEmptyDataset(err error) bool {
	return classifyError(err) == ErrNotFound
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 accepts the numeric types a JSON decoder may produce.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case interface{ Int64() (int64, error) }:
		i, _ := n.Int64()
		return i
	}
	return 0
}
