package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements Invoker using Google Gemini. Gemini accepts PDF blobs
// natively, so this backend never needs the rasterizer.
type Gemini struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	timeout   time.Duration
}

// NewGemini creates a Gemini invoker. The model is constrained to emit JSON
// matching the result schema.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", ErrConfiguration)
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = geminiResultSchema()

	return &Gemini{
		client:    client,
		model:     model,
		modelName: modelName,
		timeout:   60 * time.Second,
	}, nil
}

// geminiResultSchema mirrors the closed result schema in genai terms: all
// six keys required, each nullable. genai schemas cannot express
// additionalProperties, so the local validator remains the authority.
func geminiResultSchema() *genai.Schema {
	nullable := func(t genai.Type) *genai.Schema {
		return &genai.Schema{Type: t, Nullable: true}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"vendor":             nullable(genai.TypeString),
			"receipt_date":       nullable(genai.TypeString),
			"total":              nullable(genai.TypeNumber),
			"currency":           nullable(genai.TypeString),
			"category_suggested": nullable(genai.TypeString),
			"confidence":         nullable(genai.TypeNumber),
		},
		Required: []string{"vendor", "receipt_date", "total", "currency", "category_suggested", "confidence"},
	}
}

// Invoke sends the attachment and instruction to Gemini and returns the raw
// generated text.
func (g *Gemini) Invoke(ctx context.Context, att Attachment, instruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []genai.Part{
		genai.Blob{MIMEType: att.MIMEType, Data: att.Data},
		genai.Text(instruction),
	}

	resp, err := g.generate(ctx, parts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no response from gemini", ErrInference)
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return out.String(), nil
}

// generate calls GenerateContent with one bounded retry on transient
// failure. No state is mutated before this point, so retrying is safe.
func (g *Gemini) generate(ctx context.Context, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err == nil || ctx.Err() != nil {
		return resp, err
	}

	slog.Warn("gemini call failed, retrying once", "model", g.modelName, "error", err)
	return g.model.GenerateContent(ctx, parts...)
}

// ModelName reports the configured model identifier.
func (g *Gemini) ModelName() string {
	return g.modelName
}

// SupportsPDF reports that Gemini accepts native PDF attachments.
func (g *Gemini) SupportsPDF() bool {
	return true
}

// Close closes the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
