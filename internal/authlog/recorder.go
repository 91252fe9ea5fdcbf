package authlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lmsgate/internal/platform/metrics"
	"lmsgate/pkg/requestcontext"
)

// TimestampField is always set by the server and overrides any client value.
const TimestampField = "timestamp"

// payloadField holds a submitted JSON value that is not an object.
const payloadField = "payload"

var (
	ErrEmptyBody   = errors.New("empty auth event body")
	ErrInvalidJSON = errors.New("auth event body is not valid JSON")
)

// Recorder turns a raw request body into a logged Entry.
type Recorder struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	forwarder *Forwarder
}

// NewRecorder creates a Recorder. forwarder may be nil, in which case entries
// only reach the operational log.
func NewRecorder(logger *slog.Logger, m *metrics.Metrics, forwarder *Forwarder) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, metrics: m, forwarder: forwarder}
}

// Record parses body, stamps it with the request time and writes one
// "auth event" log line. The entry is then offered to the forwarder; a full
// forwarding queue does not fail the call.
func (r *Recorder) Record(ctx context.Context, body []byte) (Entry, error) {
	fields, err := parseFields(body)
	if err != nil {
		r.metrics.IncAuthEventsRejected()
		return Entry{}, err
	}

	ts := requestcontext.Now(ctx).UTC()
	fields[TimestampField] = ts.Format(time.RFC3339Nano)

	entry := Entry{
		ID:        uuid.New(),
		Timestamp: ts,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		Fields:    fields,
	}

	r.logger.InfoContext(ctx, "auth event",
		"event_id", entry.ID.String(),
		"timestamp", fields[TimestampField],
		"request_id", entry.RequestID,
		"client_ip", entry.ClientIP,
		slog.Any("fields", fields),
	)
	r.metrics.IncAuthEventsLogged()

	if r.forwarder != nil {
		r.forwarder.Enqueue(entry)
	}
	return entry, nil
}

func parseFields(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidJSON)
	}

	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{payloadField: v}, nil
}
