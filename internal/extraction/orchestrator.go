package extraction

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// Outcome is the uniform result envelope. StatusCode is transport guidance
// for the serving layer and never serialized.
type Outcome struct {
	OK         bool              `json:"ok"`
	ModelUsed  string            `json:"model_used,omitempty"`
	Result     *ExtractionResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	StatusCode int               `json:"-"`
}

// Pipeline sequences normalize → (rasterize) → invoke → validate for a
// single document. It holds no mutable state, so concurrent Extract calls
// are fully independent.
type Pipeline struct {
	limits     Limits
	rasterizer Rasterizer
	invoker    Invoker
}

// NewPipeline creates a Pipeline. A nil rasterizer falls back to the MuPDF
// implementation at the default scale.
func NewPipeline(limits Limits, rasterizer Rasterizer, invoker Invoker) *Pipeline {
	if rasterizer == nil {
		rasterizer = NewFitzRasterizer(0)
	}
	return &Pipeline{
		limits:     limits.withDefaults(),
		rasterizer: rasterizer,
		invoker:    invoker,
	}
}

// Normalize validates and decodes the raw request under the pipeline's
// configured limits.
func (p *Pipeline) Normalize(req Request) (*DocumentPayload, error) {
	return Normalize(req, p.limits)
}

// Extract runs one document through the full pipeline, short-circuiting on
// the first failure. No partial result is ever returned.
func (p *Pipeline) Extract(ctx context.Context, req Request) Outcome {
	payload, err := p.Normalize(req)
	if err != nil {
		return Failure(err)
	}
	return p.ExtractPayload(ctx, payload)
}

// ExtractPayload runs a pre-normalized payload through the remaining stages.
func (p *Pipeline) ExtractPayload(ctx context.Context, payload *DocumentPayload) Outcome {
	att, err := p.buildAttachment(payload)
	if err != nil {
		return Failure(err)
	}

	raw, err := p.invoker.Invoke(ctx, att, extractionPrompt)
	if err != nil {
		return Failure(err)
	}

	result, err := ValidateOutput(raw)
	if err != nil {
		return Failure(err)
	}

	return Outcome{
		OK:         true,
		ModelUsed:  p.invoker.ModelName(),
		Result:     result,
		StatusCode: http.StatusOK,
	}
}

// buildAttachment produces the single model-consumable attachment: images
// are normalized to PNG; PDFs go through either the native file path or the
// rasterizer, depending on backend capability.
func (p *Pipeline) buildAttachment(payload *DocumentPayload) (Attachment, error) {
	switch payload.Kind {
	case KindPDF:
		if p.invoker.SupportsPDF() {
			return Attachment{Kind: AttachmentFile, MIMEType: "application/pdf", Data: payload.Bytes}, nil
		}
		img, err := p.rasterizer.RasterizeFirstPage(payload.Bytes)
		if err != nil {
			return Attachment{}, err
		}
		return Attachment{Kind: AttachmentImage, MIMEType: img.MIMEType, Data: img.Bytes}, nil
	default:
		data, err := preparePNG(payload.Bytes, payload.MIMEType)
		if err != nil {
			return Attachment{}, err
		}
		return Attachment{Kind: AttachmentImage, MIMEType: "image/png", Data: data}, nil
	}
}

// Failure maps a pipeline error to a failure envelope. Configuration
// problems surface a generic message so credential details never leak.
func Failure(err error) Outcome {
	msg := err.Error()
	if errors.Is(err, ErrConfiguration) {
		msg = ErrConfiguration.Error()
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("extraction failed", "status", status, "error", err)
	} else {
		slog.Info("extraction rejected", "status", status, "error", err)
	}
	return Outcome{OK: false, Error: msg, StatusCode: status}
}

// statusFor is the single mapping from typed pipeline errors to HTTP-style
// status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrMissingInput),
		errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrMalformedBase64),
		errors.Is(err, ErrTruncatedPayload),
		errors.Is(err, ErrRasterization):
		return http.StatusBadRequest
	case errors.Is(err, ErrModelOutput):
		return http.StatusBadGateway
	default:
		// ErrConfiguration, ErrInference and anything unforeseen are
		// operator problems.
		return http.StatusInternalServerError
	}
}
