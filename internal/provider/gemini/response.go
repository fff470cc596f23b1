package gemini

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/encode"
	"github.com/portraitforge/portraitforge/internal/provider"
)

type generateContentResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type candidate struct {
	Content      *content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int               `json:"code"`
		Message string            `json:"message"`
		Status  string            `json:"status"`
		Details []json.RawMessage `json:"details"`
	} `json:"error"`
}

type errorDetail struct {
	Type       string `json:"@type"`
	RetryDelay string `json:"retryDelay"`
}

// Finish reasons that mean the provider withheld the image on safety grounds.
var safetyFinishReasons = map[string]struct{}{
	"SAFETY":                   {},
	"IMAGE_SAFETY":             {},
	"PROHIBITED_CONTENT":       {},
	"IMAGE_PROHIBITED_CONTENT": {},
	"BLOCKLIST":                {},
}

var (
	retryDelayPattern = regexp.MustCompile(`"retryDelay"\s*:\s*"\s*([0-9]+(?:\.[0-9]+)?)\s*(ms|s|m)?\s*"`)
	retryInPattern    = regexp.MustCompile(`(?i)retry in\s+([0-9]+(?:\.[0-9]+)?)\s*(ms|s|m)?\b`)
)

// classifyStatus maps a non-2xx response to an outcome.
func classifyStatus(status int, body []byte) core.Outcome {
	perr := &provider.Error{
		Provider:    providerName,
		StatusCode:  status,
		Message:     errorMessage(body),
		RawResponse: body,
	}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		perr.Status = parsed.Error.Status
	}

	if isQuota(status, perr.Status, body) {
		return core.Retryable(
			core.NewError(core.KindQuotaExceeded, "provider quota exhausted", perr),
			parseRetryDelay(body),
		)
	}
	return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "provider rejected request", perr))
}

func isQuota(status int, rpcStatus string, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if strings.EqualFold(rpcStatus, "RESOURCE_EXHAUSTED") {
		return true
	}
	text := strings.ToLower(string(body))
	return strings.Contains(text, "resource_exhausted") || strings.Contains(text, "quota")
}

// classifyBody maps a 2xx body to an outcome.
func classifyBody(body []byte) core.Outcome {
	var parsed generateContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "decode response", err))
	}

	if parsed.PromptFeedback != nil && strings.TrimSpace(parsed.PromptFeedback.BlockReason) != "" {
		return core.Retryable(core.NewError(core.KindContentFiltered,
			"prompt blocked: "+parsed.PromptFeedback.BlockReason, nil), 0)
	}
	if len(parsed.Candidates) == 0 {
		return core.Terminal(core.NewError(core.KindEmptyResponse, "response has no candidates", nil))
	}

	first := parsed.Candidates[0]
	if first.Content != nil {
		for _, p := range first.Content.Parts {
			if p.InlineData == nil || strings.TrimSpace(p.InlineData.Data) == "" {
				continue
			}
			decoded, err := encode.DecodeBase64String(p.InlineData.Data)
			if err != nil || len(decoded) == 0 {
				return core.Terminal(core.NewError(core.KindEmptyResponse, "image payload is not decodable", err))
			}
			mimeType := strings.TrimSpace(p.InlineData.MimeType)
			if mimeType == "" {
				mimeType = "image/png"
			}
			return core.Success(decoded, mimeType)
		}
	}

	reason := strings.ToUpper(strings.TrimSpace(first.FinishReason))
	if _, ok := safetyFinishReasons[reason]; ok {
		return core.Retryable(core.NewError(core.KindContentFiltered, "finish reason "+reason, nil), 0)
	}
	return core.Terminal(core.NewError(core.KindEmptyResponse, "response has no image data", nil))
}

// parseRetryDelay extracts the provider's retry hint. Unparseable hints yield 0.
func parseRetryDelay(body []byte) time.Duration {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, raw := range parsed.Error.Details {
			var detail errorDetail
			if json.Unmarshal(raw, &detail) != nil || detail.RetryDelay == "" {
				continue
			}
			if d, err := time.ParseDuration(strings.TrimSpace(detail.RetryDelay)); err == nil && d > 0 {
				return d
			}
		}
	}

	text := string(body)
	for _, pattern := range []*regexp.Regexp{retryDelayPattern, retryInPattern} {
		if match := pattern.FindStringSubmatch(text); match != nil {
			if d := durationFrom(match[1], match[2]); d > 0 {
				return d
			}
		}
	}
	return 0
}

func durationFrom(number, unit string) time.Duration {
	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value <= 0 {
		return 0
	}
	scale := time.Second
	switch strings.ToLower(unit) {
	case "ms":
		scale = time.Millisecond
	case "m":
		scale = time.Minute
	}
	return time.Duration(value * float64(scale))
}

func errorMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return strings.TrimSpace(parsed.Error.Message)
	}
	return strings.TrimSpace(string(body))
}
