package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/portraitforge/portraitforge/internal/core/store"
)

const maxNoteLength = 96

func slotStatus(slot store.SlotRecord) string {
	switch {
	case slot.Error != "":
		return "failed"
	case slot.Fallback:
		return "fallback"
	case slot.Ref != "":
		return "ok"
	default:
		return "missing"
	}
}

func slotNotes(slot store.SlotRecord) string {
	var notes []string
	if slot.Attempts > 1 {
		notes = append(notes, fmt.Sprintf("%d attempts", slot.Attempts))
	}
	if slot.Cause != "" {
		notes = append(notes, "cause: "+slot.Cause)
	}
	if slot.Error != "" {
		notes = append(notes, slot.Error)
	}
	return truncate(strings.Join(notes, "; "), maxNoteLength)
}

func summary(record *store.GenerationRecord) string {
	return fmt.Sprintf("%d/%d required artifacts", record.Succeeded, record.Required)
}

func elapsed(record *store.GenerationRecord) string {
	if record.CompletedAt.IsZero() || record.RequestedAt.IsZero() {
		return "-"
	}
	return record.CompletedAt.Sub(record.RequestedAt).Round(time.Millisecond).String()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
