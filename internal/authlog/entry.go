package authlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one accepted auth event as written to the operational log and
// forwarded to the configured sink.
type Entry struct {
	ID        uuid.UUID
	Timestamp time.Time
	RequestID string
	ClientIP  string
	UserAgent string
	// Fields are the submitted event fields plus the server-side "timestamp".
	Fields map[string]any
}

// Payload is the JSON document sinks persist: the submitted fields with the
// server-generated timestamp.
func (e Entry) Payload() ([]byte, error) {
	return json.Marshal(e.Fields)
}

// Sink receives entries forwarded by the Forwarder. Implementations must be
// safe for use by a single goroutine; the Forwarder never writes concurrently.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}
