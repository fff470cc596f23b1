package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/core/store"
)

func sampleRecord() *store.GenerationRecord {
	requested := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return &store.GenerationRecord{
		ID:         "gen-1",
		Category:   core.CategoryAgeProgression,
		SubjectRef: "alice",
		Status:     store.StatusSucceeded,
		Required:   3,
		Succeeded:  3,
		Slots: []store.SlotRecord{
			{Index: 1, Ref: "artifact://one", ContentType: "image/png", Attempts: 1},
			{Index: 2, Ref: "artifact://two", ContentType: "image/png", Attempts: 3},
			{Index: 3, Ref: "artifact://three", ContentType: "image/png", Fallback: true, Cause: "provider quota exhausted"},
		},
		RequestedAt: requested,
		CompletedAt: requested.Add(2 * time.Second),
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestFormatters(t *testing.T) {
	record := sampleRecord()

	tableRendered, err := NewFormatter(FormatTable).FormatGeneration(record)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "SLOT")
	require.Contains(t, tableRendered, "fallback")
	require.Contains(t, tableRendered, "3 attempts")
	require.Contains(t, tableRendered, "3/3 required artifacts")

	jsonRendered, err := NewFormatter(FormatJSON).FormatGeneration(record)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"subject_ref\": \"alice\"")
	require.Contains(t, jsonRendered, "\"category\": \"age-progression\"")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatGeneration(record)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "| Slot | Status | Artifact | Notes |")
	require.Contains(t, markdownRendered, "cause: provider quota exhausted")
}

func TestFormatHistory(t *testing.T) {
	records := []store.GenerationRecord{*sampleRecord()}

	tableRendered, err := NewFormatter(FormatTable).FormatHistory(records)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "gen-1")
	require.Contains(t, tableRendered, "3/3")

	empty, err := NewFormatter(FormatTable).FormatHistory(nil)
	require.NoError(t, err)
	require.Contains(t, empty, "no generations recorded")

	jsonRendered, err := NewFormatter(FormatJSON).FormatHistory(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", jsonRendered)
}

func TestSlotStatus(t *testing.T) {
	require.Equal(t, "ok", slotStatus(store.SlotRecord{Ref: "x"}))
	require.Equal(t, "fallback", slotStatus(store.SlotRecord{Ref: "x", Fallback: true}))
	require.Equal(t, "failed", slotStatus(store.SlotRecord{Error: "store failed"}))
	require.Equal(t, "missing", slotStatus(store.SlotRecord{}))
}

func TestMarkdownEscaping(t *testing.T) {
	record := sampleRecord()
	record.SubjectRef = "pipe|test"

	rendered, err := NewFormatter(FormatMarkdown).FormatGeneration(record)
	require.NoError(t, err)
	require.Contains(t, rendered, "pipe\\|test")
}

func TestFormatGenerationsNonJSON(t *testing.T) {
	rendered, err := FormatGenerations(FormatMarkdown, []*store.GenerationRecord{sampleRecord(), nil})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## "))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
