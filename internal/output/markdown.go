package output

import (
	"fmt"
	"strings"

	"github.com/portraitforge/portraitforge/internal/core/store"
)

// MarkdownFormatter renders records as markdown tables.
type MarkdownFormatter struct{}

// FormatGeneration renders a record as Markdown.
func (f *MarkdownFormatter) FormatGeneration(record *store.GenerationRecord) (string, error) {
	if record == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s for %s\n\n", escapeMarkdownCell(string(record.Category)), escapeMarkdownCell(record.SubjectRef)))
	sb.WriteString("| Slot | Status | Artifact | Notes |\n")
	sb.WriteString("|------|--------|----------|-------|\n")

	for _, slot := range record.Slots {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			slot.Index,
			escapeMarkdownCell(slotStatus(slot)),
			escapeMarkdownCell(slot.Ref),
			escapeMarkdownCell(slotNotes(slot)),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Result**: %s (%s)\n", record.Status, summary(record)))
	if record.Error != "" {
		sb.WriteString(fmt.Sprintf("\n**Error**: %s\n", record.Error))
	}
	return sb.String(), nil
}

// FormatHistory renders records as one Markdown table.
func (f *MarkdownFormatter) FormatHistory(records []store.GenerationRecord) (string, error) {
	var sb strings.Builder
	sb.WriteString("| ID | Category | Subject | Status | Artifacts | Requested |\n")
	sb.WriteString("|----|----------|---------|--------|-----------|-----------|\n")
	for _, record := range records {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d/%d | %s |\n",
			record.ID,
			escapeMarkdownCell(string(record.Category)),
			escapeMarkdownCell(record.SubjectRef),
			record.Status,
			record.Succeeded, record.Required,
			timestamp(record.RequestedAt),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
