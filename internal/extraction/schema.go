package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// resultJSONSchema is the closed contract for model output: all six keys
// present, correct primitive types (or null), no extra keys. Types only are
// constrained here; confidence range is handled by clamping, not rejection.
func resultJSONSchema() map[string]any {
	nullable := func(t string) map[string]any {
		return map[string]any{"type": []string{t, "null"}}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor":             nullable("string"),
			"receipt_date":       nullable("string"),
			"total":              nullable("number"),
			"currency":           nullable("string"),
			"category_suggested": nullable("string"),
			"confidence":         nullable("number"),
		},
		"required": []string{"vendor", "receipt_date", "total", "currency", "category_suggested", "confidence"},
	}
}

// validateAgainstSchema validates data against a generic schema map.
func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	raw, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
