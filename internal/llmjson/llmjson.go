// Package llmjson decodes JSON payloads produced by language models.
//
// Models asked for "JSON only" still frequently wrap the payload in markdown
// code fences or add a language tag. Clean strips those artefacts;
// Unmarshal combines cleaning and decoding so callers get one-line parsing
// of structured model output.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Clean strips markdown code fences from a model response, returning the bare
// JSON text. It handles the common formats:
//
//	```json ... ```
//	``` ... ```
//	plain JSON
func Clean(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		// Remove the opening fence and optional language tag.
		text = text[3:]
		if rest, ok := strings.CutPrefix(text, "json"); ok {
			text = rest
		}
		// Remove the closing fence if present.
		if idx := strings.Index(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasSuffix(text, "```") {
		text = text[:len(text)-3]
	}
	return strings.TrimSpace(text)
}

// Unmarshal cleans text and decodes the result into v.
func Unmarshal(text string, v any) error {
	cleaned := Clean(text)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("llmjson: decode model output: %w", err)
	}
	return nil
}
