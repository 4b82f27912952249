package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Ollama implements Invoker against a local Ollama instance. Vision models
// there take images only, so the orchestrator rasterizes PDFs for this
// backend.
//
// Recommended models: llava:1.6 (best balance), qwen2-vl:7b (good OCR),
// llava-phi3 (smaller, faster, less accurate).
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates an Ollama invoker.
func NewOllama(baseURL, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			// Vision models on local hardware can be slow.
			Timeout: 120 * time.Second,
		},
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Invoke sends the image and instruction to Ollama's chat API in JSON mode.
func (o *Ollama) Invoke(ctx context.Context, att Attachment, instruction string) (string, error) {
	if att.Kind != AttachmentImage {
		return "", fmt.Errorf("%w: ollama accepts image attachments only", ErrInference)
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{
				Role:    "user",
				Content: instruction,
				Images:  []string{base64.StdEncoding.EncodeToString(att.Data)},
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := o.post(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama status %d: %s", ErrInference, resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrInference, err)
	}
	return chatResp.Message.Content, nil
}

// post performs the HTTP call with one bounded retry on transport failure.
func (o *Ollama) post(ctx context.Context, payload []byte) (*http.Response, error) {
	url := o.baseURL + "/api/chat"
	do := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return o.client.Do(req)
	}

	resp, err := do()
	if err == nil || ctx.Err() != nil {
		return resp, err
	}

	slog.Warn("ollama call failed, retrying once", "model", o.model, "error", err)
	return do()
}

// ModelName reports the configured model identifier.
func (o *Ollama) ModelName() string {
	return o.model
}

// SupportsPDF reports that Ollama cannot take PDF attachments.
func (o *Ollama) SupportsPDF() bool {
	return false
}

// Close is a no-op for the HTTP client.
func (o *Ollama) Close() error {
	return nil
}
