package llm

import (
	"errors"
	"testing"

	"github.com/parleyai/quorum/internal/domain/model"
)

func TestParseReply_StructuredJSON(t *testing.T) {
	raw := `{"response": "Book a demo call", "confidence": 0.85, "reasoning": "strong intent"}`
	response, _, confidence, reasoning, err := parseReply(raw, model.TaskConversation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != "Book a demo call" {
		t.Errorf("unexpected response: %q", response)
	}
	if confidence != 0.85 {
		t.Errorf("unexpected confidence: %v", confidence)
	}
	if reasoning != "strong intent" {
		t.Errorf("unexpected reasoning: %q", reasoning)
	}
}

func TestParseReply_FencedJSON(t *testing.T) {
	raw := "```json\n{\"response\": \"8\", \"confidence\": 0.9, \"reasoning\": \"ok\"}\n```"
	response, score, _, _, err := parseReply(raw, model.TaskQualification)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != "8" {
		t.Errorf("unexpected response: %q", response)
	}
	if score != 8 {
		t.Errorf("unexpected score: %v", score)
	}
}

func TestParseReply_PlainTextFallback(t *testing.T) {
	response, _, confidence, _, err := parseReply("Just call them back tomorrow.", model.TaskConversation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != "Just call them back tomorrow." {
		t.Errorf("unexpected response: %q", response)
	}
	if confidence != defaultConfidence {
		t.Errorf("expected fallback confidence %v, got %v", defaultConfidence, confidence)
	}
}

func TestParseReply_NumericExtraction(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`{"response": 8, "confidence": 0.9}`, 8},
		{`{"response": "8/10: strong lead", "confidence": 0.9}`, 8},
		{"7.5", 7.5},
	}
	for _, tc := range cases {
		_, score, _, _, err := parseReply(tc.raw, model.TaskQualification)
		if err != nil {
			t.Errorf("parse %q: unexpected error %v", tc.raw, err)
			continue
		}
		if score != tc.want {
			t.Errorf("parse %q: expected score %v, got %v", tc.raw, tc.want, score)
		}
	}
}

func TestParseReply_Invalid(t *testing.T) {
	if _, _, _, _, err := parseReply("", model.TaskGeneral); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("empty reply: expected ErrInvalidResponse, got %v", err)
	}
	if _, _, _, _, err := parseReply("no number here", model.TaskQualification); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("non-numeric reply for numeric task: expected ErrInvalidResponse, got %v", err)
	}
}

func TestParseReply_ConfidenceClamped(t *testing.T) {
	_, _, confidence, _, err := parseReply(`{"response": "ok", "confidence": 1.7}`, model.TaskGeneral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", confidence)
	}
}
