package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractionResult is the structured record returned to the caller. All six
// keys are always emitted; pointers marshal as null where unknown.
//
// ReceiptDate is passed through exactly as the model produced it. The
// contract asks for YYYY-MM-DD but nothing here re-validates the format;
// tightening that is a product decision, not a validator fix.
type ExtractionResult struct {
	Vendor            *string  `json:"vendor"`
	ReceiptDate       *string  `json:"receipt_date"`
	Total             *float64 `json:"total"`
	Currency          *string  `json:"currency"`
	CategorySuggested *string  `json:"category_suggested"`
	Confidence        *float64 `json:"confidence"`
}

// ValidateOutput parses raw model text into an ExtractionResult, checking it
// against the closed schema and clamping confidence into [0,1]. Any failure
// is an upstream contract violation, not a caller error.
func ValidateOutput(raw string) (*ExtractionResult, error) {
	text, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	if err := validateAgainstSchema(resultJSONSchema(), []byte(text)); err != nil {
		return nil, fmt.Errorf("%w: %v; raw output: %s", ErrModelOutput, err, truncateForLog(raw))
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelOutput, err)
	}

	if result.Confidence != nil {
		c := *result.Confidence
		if c < 0 {
			c = 0
		} else if c > 1 {
			c = 1
		}
		result.Confidence = &c
	}

	return &result, nil
}

// extractJSONObject strips markdown fences and isolates the outermost JSON
// object. Schema-constrained backends should never fence their output, but
// local models still do.
func extractJSONObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object in response; raw output: %s", ErrModelOutput, truncateForLog(raw))
	}
	text = text[start : end+1]

	if !json.Valid([]byte(text)) {
		return "", fmt.Errorf("%w: invalid JSON in response; raw output: %s", ErrModelOutput, truncateForLog(raw))
	}
	return text, nil
}

func truncateForLog(s string) string {
	const max = 300
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
