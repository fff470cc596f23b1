package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/imaging"
	"github.com/portraitforge/portraitforge/internal/provider"
)

const (
	providerName = "gemini"

	// DefaultBaseURL is the public Generative Language API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is an image-capable model accepting inline image input.
	DefaultModel = "gemini-2.5-flash-image"

	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 64 << 20
)

// Client calls the generateContent endpoint via direct HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration

	// Placeholder supplies the artifact returned when no API key is configured.
	Placeholder func() []byte
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey, model string) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = DefaultBaseURL
	}
	name := strings.TrimSpace(model)
	if name == "" {
		name = DefaultModel
	}
	return &Client{
		BaseURL: url,
		APIKey:  strings.TrimSpace(apiKey),
		Model:   name,
		Timeout: DefaultTimeout,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return providerName
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.APIKey) != ""
}

// Generate performs one classified generateContent call. Without credentials it
// returns the placeholder artifact immediately, flagged with Placeholder.
func (c *Client) Generate(ctx context.Context, req *core.GenerationRequest) core.Outcome {
	if !c.Configured() {
		outcome := core.Success(c.placeholder(), imaging.PlaceholderMimeType)
		outcome.Placeholder = true
		return outcome
	}

	payload, err := buildRequest(req)
	if err != nil {
		return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "build request", err))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "encode request", err))
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	endpoint := "/models/" + c.model() + ":generateContent"
	trace := provider.TraceEntry{
		Provider: providerName,
		Endpoint: endpoint,
		Method:   http.MethodPost,
		Model:    c.model(),
		Category: string(req.Category),
		Slot:     req.SequenceIndex,
	}
	if provider.IsTracingEnabled() {
		trace.RequestBody = redactedBody(payload)
	}
	start := time.Now()

	outcome, status, respBody := c.do(ctx, endpoint, body)

	trace.StatusCode = status
	trace.Outcome = outcome.Kind.String()
	trace.DurationMs = time.Since(start).Milliseconds()
	if outcome.Err != nil {
		trace.Error = outcome.Err.Error()
	}
	if status >= http.StatusMultipleChoices && json.Valid(respBody) {
		trace.Response = respBody
	}
	provider.Trace(trace)

	return outcome
}

func (c *Client) do(ctx context.Context, endpoint string, body []byte) (core.Outcome, int, []byte) {
	url := strings.TrimRight(c.BaseURL, "/") + endpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "build request", err)), 0, nil
	}
	httpReq.Header.Set("x-goog-api-key", c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "provider call timed out", err)), 0, nil
		}
		return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "request failed", err)), 0, nil
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.Terminal(core.NewError(core.KindNetworkOrProtocol, "read response", err)), resp.StatusCode, nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatus(resp.StatusCode, respBody), resp.StatusCode, respBody
	}
	return classifyBody(respBody), resp.StatusCode, respBody
}

func (c *Client) model() string {
	if strings.TrimSpace(c.Model) == "" {
		return DefaultModel
	}
	return strings.TrimSpace(c.Model)
}

func (c *Client) placeholder() []byte {
	if c != nil && c.Placeholder != nil {
		if data := c.Placeholder(); len(data) > 0 {
			return data
		}
	}
	return imaging.PlaceholderBytes()
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
