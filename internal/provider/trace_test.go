package provider

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func decodeTrace(t *testing.T, data []byte) []TraceEntry {
	t.Helper()
	var entries []TraceEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var entry TraceEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestTracingToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.ndjson")

	stop, err := EnableTracing(path)
	require.NoError(t, err)
	require.True(t, IsTracingEnabled())

	Trace(TraceEntry{Provider: "gemini", Endpoint: "/models/x:generateContent", Method: "POST", Slot: 2, StatusCode: 200})
	Trace(TraceEntry{Provider: "gemini", Error: "timeout"})
	stop()
	require.False(t, IsTracingEnabled())

	Trace(TraceEntry{Provider: "ignored"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	entries := decodeTrace(t, data)
	require.Len(t, entries, 2)
	require.Equal(t, 2, entries[0].Slot)
	require.False(t, entries[0].Timestamp.IsZero())
	require.Equal(t, "timeout", entries[1].Error)
}

func TestSetTracerClosesPrevious(t *testing.T) {
	first, second := &closeRecorder{}, &closeRecorder{}
	SetTracer(NewTracer(first))
	SetTracer(NewTracer(second))
	t.Cleanup(DisableTracing)

	require.True(t, first.closed)
	require.False(t, second.closed)

	DisableTracing()
	require.True(t, second.closed)
}

func TestTracerConcurrentSlots(t *testing.T) {
	out := &closeRecorder{}
	tracer := NewTracer(out)
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracer.now = func() time.Time { return stamp }

	var wg sync.WaitGroup
	for slot := 0; slot < 4; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			tracer.Write(TraceEntry{Provider: "gemini", Category: "age-progression", Slot: slot})
		}(slot)
	}
	wg.Wait()

	entries := decodeTrace(t, out.Bytes())
	require.Len(t, entries, 4)
	seen := map[int]bool{}
	for _, entry := range entries {
		require.True(t, stamp.Equal(entry.Timestamp))
		seen[entry.Slot] = true
	}
	require.Len(t, seen, 4)

	var nilTracer *Tracer
	nilTracer.Write(TraceEntry{})
	require.NoError(t, nilTracer.Close())
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Provider: "gemini", StatusCode: 503, Message: "overloaded"}
	require.Equal(t, "gemini request failed: status 503: overloaded", err.Error())
	require.True(t, err.Temporary())

	err = &Error{Provider: "gemini", StatusCode: 400, Message: "bad"}
	require.False(t, err.Temporary())

	var nilErr *Error
	require.Equal(t, "provider error", nilErr.Error())
}
