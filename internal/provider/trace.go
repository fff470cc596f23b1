package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// TraceEntry records one provider call. Image payloads in RequestBody are
// elided by the client before tracing.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Provider    string          `json:"provider"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Model       string          `json:"model,omitempty"`
	Category    string          `json:"category,omitempty"`
	Slot        int             `json:"slot"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

// Tracer writes entries as NDJSON. Slots trace concurrently, so writes are serialized.
type Tracer struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
	now func() time.Time
}

// NewTracer traces to out; Close closes out.
func NewTracer(out io.WriteCloser) *Tracer {
	return &Tracer{out: out, enc: json.NewEncoder(out), now: time.Now}
}

// Write stamps and appends entry. Encoding failures drop the entry.
func (t *Tracer) Write(entry TraceEntry) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = t.now().UTC()
	}
	_ = t.enc.Encode(entry)
}

func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.Close()
}

var active atomic.Pointer[Tracer]

// SetTracer installs t as the process tracer and closes the previous one. A nil t disables tracing.
func SetTracer(t *Tracer) {
	if prev := active.Swap(t); prev != nil {
		_ = prev.Close()
	}
}

// EnableTracing appends traces to the file at path and returns a function that stops tracing.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- trace path is operator-provided
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	SetTracer(NewTracer(f))
	return DisableTracing, nil
}

// DisableTracing stops tracing and closes the trace output.
func DisableTracing() {
	SetTracer(nil)
}

func IsTracingEnabled() bool {
	return active.Load() != nil
}

// Trace records entry when tracing is enabled.
func Trace(entry TraceEntry) {
	active.Load().Write(entry)
}
