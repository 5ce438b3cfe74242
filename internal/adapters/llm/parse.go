package llm

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/parleyai/quorum/internal/domain/model"
)

// structuredInstruction is appended to every provider prompt so model
// output can be parsed into a ModelResult.
const structuredInstruction = "\n\nProvide your response in the following JSON format:\n" +
	`{"response": "your main response to the prompt", "confidence": 0.85, "reasoning": "brief explanation of your reasoning"}` +
	"\nEnsure the JSON is valid and complete."

// defaultConfidence is assumed when a model ignores the structured
// format and replies in plain text.
const defaultConfidence = 0.7

// structuredReply mirrors the JSON shape requested from providers.
// Response is raw because some models answer with a bare number for
// scoring tasks.
type structuredReply struct {
	Response   json.RawMessage `json:"response"`
	Confidence float64         `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// parseReply converts raw provider output into the fields of a
// ModelResult. Plain-text replies fall back to the raw content with the
// default confidence; an empty reply is ErrInvalidResponse.
func parseReply(raw string, task model.TaskType) (response string, score float64, confidence float64, reasoning string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, 0, "", ErrInvalidResponse
	}

	var reply structuredReply
	if jsonErr := json.Unmarshal([]byte(stripFences(raw)), &reply); jsonErr == nil && len(reply.Response) > 0 {
		response = rawToString(reply.Response)
		confidence = clamp01(reply.Confidence)
		if confidence == 0 {
			confidence = defaultConfidence
		}
		reasoning = reply.Reasoning
	} else {
		// Fallback for models that ignore the structured format.
		response = raw
		confidence = defaultConfidence
	}

	if task.Numeric() {
		var ok bool
		score, ok = parseScore(response)
		if !ok {
			return "", 0, 0, "", ErrInvalidResponse
		}
	}
	return response, score, confidence, reasoning, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// rawToString renders a JSON string or number as plain text.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// parseScore extracts the first numeric token from a response, e.g.,
// "8" from "8/10: strong lead".
func parseScore(s string) (float64, bool) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return v, true
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != '-'
	})
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if f == "" {
			continue
		}
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
