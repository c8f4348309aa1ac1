package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// decodeStructured parses a model's JSON answer into v. Markdown fences and
// common syntax slips (trailing commas, single quotes, truncation) are repaired first.
func decodeStructured(text string, v any) error {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "{"); start > 0 {
		text = text[start:]
	}
	if end := strings.LastIndex(text, "}"); end >= 0 && end < len(text)-1 {
		text = text[:end+1]
	}
	if text == "" {
		return fmt.Errorf("empty structured output")
	}

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return fmt.Errorf("repair structured output: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode structured output: %w", err)
	}
	return nil
}
