package encode

import (
	"encoding/base64"
	"errors"
	"strings"
)

// DecodeBase64String decodes standard or URL-safe base64, padded or not. Embedded
// whitespace and data-URI prefixes are ignored.
func DecodeBase64String(value string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, value)
	if idx := strings.Index(cleaned, ";base64,"); idx >= 0 && strings.HasPrefix(cleaned, "data:") {
		cleaned = cleaned[idx+len(";base64,"):]
	}
	if cleaned == "" {
		return nil, errors.New("empty base64 payload")
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(cleaned)
		if err == nil {
			return decoded, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// EncodeBase64String encodes with standard padded base64.
func EncodeBase64String(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}
