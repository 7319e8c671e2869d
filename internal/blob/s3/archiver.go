package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nftvista/nftvista/internal/domain"
)

// SnapshotArchiver uploads the raw order-book snapshot fetched during a
// reconciliation run as JSONL, so divergences found later can be audited
// against what the source actually reported at the time.
type SnapshotArchiver struct {
	writer domain.BlobWriter
}

// NewSnapshotArchiver creates a SnapshotArchiver on top of the given writer.
func NewSnapshotArchiver(writer domain.BlobWriter) *SnapshotArchiver {
	return &SnapshotArchiver{writer: writer}
}

// ArchiveOrders serializes the fetched order book to JSONL and uploads it to
// snapshots/<ticker>/<date>/<run-id>.jsonl. It returns the object path.
func (a *SnapshotArchiver) ArchiveOrders(ctx context.Context, ticker, runID string, orders []domain.Listing) (string, error) {
	buf, err := marshalJSONL(orders)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal snapshot: %w", err)
	}

	path := fmt.Sprintf("snapshots/%s/%s/%s.jsonl",
		ticker, time.Now().UTC().Format("2006-01-02"), runID)

	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: upload snapshot: %w", err)
	}
	return path, nil
}

// marshalJSONL encodes each element as one JSON line.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return nil, fmt.Errorf("encode item %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
