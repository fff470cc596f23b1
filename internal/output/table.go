package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/portraitforge/portraitforge/internal/core/store"
)

// TableFormatter renders records as ASCII tables.
type TableFormatter struct{}

// FormatGeneration renders one record with a row per slot.
func (f *TableFormatter) FormatGeneration(record *store.GenerationRecord) (string, error) {
	if record == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s · %s · %s", record.Category, record.SubjectRef, record.Status))
	t.AppendHeader(table.Row{"Slot", "Status", "Artifact", "Notes"})

	for _, slot := range record.Slots {
		t.AppendRow(table.Row{slot.Index, slotStatus(slot), slot.Ref, slotNotes(slot)})
	}

	t.AppendFooter(table.Row{"", summary(record), elapsed(record), truncate(record.Error, maxNoteLength)})
	return t.Render(), nil
}

// FormatHistory renders one row per record.
func (f *TableFormatter) FormatHistory(records []store.GenerationRecord) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Category", "Subject", "Status", "Artifacts", "Requested"})

	for _, record := range records {
		t.AppendRow(table.Row{
			record.ID,
			string(record.Category),
			record.SubjectRef,
			record.Status,
			fmt.Sprintf("%d/%d", record.Succeeded, record.Required),
			timestamp(record.RequestedAt),
		})
	}
	if len(records) == 0 {
		t.AppendRow(table.Row{"(no generations recorded)", "", "", "", "", ""})
	}
	return t.Render(), nil
}
