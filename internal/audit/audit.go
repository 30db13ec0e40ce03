// Package audit archives raw webhook payloads, gzipped, next to the
// payment_events table so a disputed notification can be replayed byte for byte.
package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// Record is one inbound webhook payload.
type Record struct {
	EventID    uuid.UUID
	Provider   string
	ReceivedAt time.Time
	Payload    []byte
}

// Key returns the archive key of the record:
// <provider>/<yyyy>/<mm>/<dd>/<event id>.json.gz.
func (r Record) Key() string {
	provider := r.Provider
	if provider == "" {
		provider = "unknown"
	}
	return path.Join(provider, r.ReceivedAt.UTC().Format("2006/01/02"), r.EventID.String()+".json.gz")
}

// Archiver stores and retrieves archived payloads.
type Archiver interface {
	// Archive stores the record and returns the key it was written under.
	Archive(ctx context.Context, rec Record) (string, error)

	// Load returns the decompressed payload stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
}

func compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to gzip payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to gzip payload: %w", err)
	}
	return buf.Bytes(), nil
}

// maxPayload bounds decompression of a single archived webhook.
const maxPayload = 16 << 20

func decompress(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to read archived payload: %w", err)
	}
	return data, nil
}
