package curation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrLLMResponseShape marks model output that failed strict decoding. Callers
// never repair such output; they fall back to the deterministic path.
var ErrLLMResponseShape = errors.New("llm response shape")

type validator interface {
	Validate() error
}

// extractJSON returns the substring spanning the first '{' through the last
// '}' of raw, tolerating prose or code fences around the object.
func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no json object in response", ErrLLMResponseShape)
	}
	return raw[start : end+1], nil
}

// decodeStrict unmarshals the embedded JSON object into out and validates
// its required fields. Any failure is final.
func decodeStrict(raw string, out validator) error {
	body, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %v", ErrLLMResponseShape, err)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrLLMResponseShape, err)
	}
	return nil
}
