package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parleyai/quorum/internal/domain/model"
)

// OpenAIAdapter invokes an OpenAI-compatible chat completions endpoint.
type OpenAIAdapter struct {
	name    string
	apiKey  string
	baseURL string
	modelID string
	http    *http.Client
}

// NewOpenAI creates an adapter for an OpenAI-compatible backend. The
// call deadline is governed by the request context, not a client
// timeout.
func NewOpenAI(name, apiKey, baseURL, modelID string) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if modelID == "" {
		modelID = "gpt-4"
	}
	return &OpenAIAdapter{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		modelID: modelID,
		http:    &http.Client{},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

// Name implements Adapter.
func (a *OpenAIAdapter) Name() string { return a.name }

// Invoke implements Adapter.
func (a *OpenAIAdapter) Invoke(ctx context.Context, req Request) (model.ModelResult, error) {
	start := time.Now()

	body, err := json.Marshal(openAIRequest{
		Model: a.modelID,
		Messages: []openAIMessage{
			{Role: "user", Content: req.Prompt + structuredInstruction},
		},
	})
	if err != nil {
		return model.ModelResult{}, fmt.Errorf("%s: marshal request: %w", a.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return model.ModelResult{}, fmt.Errorf("%s: %w", a.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
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
		return model.ModelResult{}, fmt.Errorf("%s: %w: status %d: %s", a.name, ErrUnavailable, resp.StatusCode, msg)
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.ModelResult{}, fmt.Errorf("%s: %w: %v", a.name, ErrInvalidResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return model.ModelResult{}, fmt.Errorf("%s: %w: no choices", a.name, ErrInvalidResponse)
	}

	response, score, confidence, reasoning, err := parseReply(parsed.Choices[0].Message.Content, req.Task)
	if err != nil {
		return model.ModelResult{}, fmt.Errorf("%s: %w", a.name, err)
	}

	return model.ModelResult{
		Model:      a.name,
		Response:   response,
		Score:      score,
		Confidence: confidence,
		Reasoning:  reasoning,
		TokensUsed: parsed.Usage.TotalTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
