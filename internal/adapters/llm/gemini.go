package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/parleyai/quorum/internal/domain/model"
)

// GeminiAdapter invokes the Google Generative Language API.
type GeminiAdapter struct {
	name    string
	apiKey  string
	baseURL string
	modelID string
	http    *http.Client
}

// NewGemini creates an adapter for a Gemini backend.
func NewGemini(name, apiKey, baseURL, modelID string) *GeminiAdapter {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if modelID == "" {
		modelID = "gemini-2.5-flash"
	}
	return &GeminiAdapter{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		modelID: modelID,
		http:    &http.Client{},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

// Name implements Adapter.
func (a *GeminiAdapter) Name() string { return a.name }

// Invoke implements Adapter.
func (a *GeminiAdapter) Invoke(ctx context.Context, req Request) (model.ModelResult, error) {
	start := time.Now()

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: req.Prompt + structuredInstruction}}},
		},
	})
	if err != nil {
		return model.ModelResult{}, fmt.Errorf("%s: marshal request: %w", a.name, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, a.modelID, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.ModelResult{}, fmt.Errorf("%s: %w", a.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.ModelResult{}, fmt.Errorf("%s: %w", a.name, ErrTimeout)
		}
		return model.ModelResult{}, fmt.Errorf("%s: %w: %v", a.name, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		// Redact the key before the error surfaces in logs.
		redacted := strings.ReplaceAll(string(msg), a.apiKey, "REDACTED")
		return model.ModelResult{}, fmt.Errorf("%s: %w: status %d: %s", a.name, ErrUnavailable, resp.StatusCode, redacted)
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.ModelResult{}, fmt.Errorf("%s: %w: %v", a.name, ErrInvalidResponse, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return model.ModelResult{}, fmt.Errorf("%s: %w: no candidates", a.name, ErrInvalidResponse)
	}

	response, score, confidence, reasoning, err := parseReply(parsed.Candidates[0].Content.Parts[0].Text, req.Task)
	if err != nil {
		return model.ModelResult{}, fmt.Errorf("%s: %w", a.name, err)
	}

	return model.ModelResult{
		Model:      a.name,
		Response:   response,
		Score:      score,
		Confidence: confidence,
		Reasoning:  reasoning,
		TokensUsed: parsed.UsageMetadata.TotalTokenCount,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
