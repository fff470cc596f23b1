package output

import (
	"encoding/json"

	"github.com/portraitforge/portraitforge/internal/core/store"
)

// JSONFormatter renders records as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatGeneration renders a record as JSON.
func (f *JSONFormatter) FormatGeneration(record *store.GenerationRecord) (string, error) {
	if record == nil {
		return "", nil
	}
	return f.marshal(record)
}

// FormatHistory renders records as a JSON array.
func (f *JSONFormatter) FormatHistory(records []store.GenerationRecord) (string, error) {
	if records == nil {
		records = []store.GenerationRecord{}
	}
	return f.marshal(records)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
