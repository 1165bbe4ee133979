package biometric

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// VerificationRecord is the audit record emitted for every Verify call.
// Exactly one record is produced per call, including rejected, cancelled,
// and failed attempts.
type VerificationRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	VerificationID string    `json:"verification_id"`
	Identity       string    `json:"identity,omitempty"`
	SchemaVersion  string    `json:"schema_version,omitempty"`
	Decision       string    `json:"decision"`
	Reason         string    `json:"reason,omitempty"`
	BestScore      float32   `json:"best_score"`
	DeviceSN       string    `json:"device_sn,omitempty"`
	IP             string    `json:"ip,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// AuditSink receives verification records from the engine's dispatcher.
// Implementations must be safe for concurrent use.
type AuditSink interface {
	Emit(ctx context.Context, record VerificationRecord) error
}

// NoOpSink discards every record.
type NoOpSink struct{}

// Emit implements [AuditSink].
func (NoOpSink) Emit(context.Context, VerificationRecord) error { return nil }

// ChannelSink forwards records to a channel, for tests and custom
// consumers.
type ChannelSink struct {
	C chan VerificationRecord
}

// NewChannelSink returns a sink backed by a channel of the given capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan VerificationRecord, buffer)}
}

// Emit implements [AuditSink]. It blocks until the record is taken or ctx
// is done.
func (s *ChannelSink) Emit(ctx context.Context, record VerificationRecord) error {
	select {
	case s.C <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JSONWriterSink writes one JSON object per line to w.
type JSONWriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

// Emit implements [AuditSink].
func (s *JSONWriterSink) Emit(_ context.Context, record VerificationRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(data)
	return err
}
