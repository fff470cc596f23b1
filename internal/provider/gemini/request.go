package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/portraitforge/portraitforge/internal/core"
)

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

// buildRequest places the subject image before the instruction text.
func buildRequest(req *core.GenerationRequest) (*generateContentRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		return nil, fmt.Errorf("subject image is required")
	}

	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return &generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: mimeType, Data: req.ImageBase64}},
				{Text: req.Prompt},
			},
		}},
		GenerationConfig: generationConfig{ResponseModalities: []string{"Image"}},
	}, nil
}

// redactedBody renders the request for tracing with image payloads elided.
func redactedBody(payload *generateContentRequest) json.RawMessage {
	if payload == nil {
		return nil
	}
	clone := *payload
	clone.Contents = make([]content, len(payload.Contents))
	for i, c := range payload.Contents {
		parts := make([]part, len(c.Parts))
		for j, p := range c.Parts {
			parts[j] = p
			if p.InlineData != nil {
				parts[j].InlineData = &inlineData{
					MimeType: p.InlineData.MimeType,
					Data:     fmt.Sprintf("<%d base64 chars>", len(p.InlineData.Data)),
				}
			}
		}
		clone.Contents[i] = content{Role: c.Role, Parts: parts}
	}
	data, err := json.Marshal(clone)
	if err != nil {
		return nil
	}
	return data
}
