package extraction

import "errors"

// Pipeline stages wrap these sentinels so the orchestrator can map each
// failure to a transport status without inspecting message text.
var (
	// ErrMissingInput means the request carried neither an imageDataUrl
	// nor a fileBase64 field.
	ErrMissingInput = errors.New("missing input: expected imageDataUrl or fileBase64")

	// ErrUnsupportedType means the document is neither an image nor a PDF.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrMalformedBase64 means the payload could not be base64-decoded.
	ErrMalformedBase64 = errors.New("malformed base64 payload")

	// ErrTruncatedPayload means a decoded PDF is implausibly small,
	// which almost always indicates transport truncation.
	ErrTruncatedPayload = errors.New("payload appears truncated, please re-upload the file")

	// ErrPayloadTooLarge means the decoded payload exceeds the configured
	// maximum. Callers should advise the user to retry with a smaller file.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrRasterization means the PDF could not be rendered to an image.
	ErrRasterization = errors.New("failed to process PDF")

	// ErrConfiguration means a required backend credential or option is
	// absent. The message is intentionally generic.
	ErrConfiguration = errors.New("inference backend is not configured")

	// ErrInference means the upstream model call failed.
	ErrInference = errors.New("inference backend failure")

	// ErrModelOutput means the model returned output that is not valid
	// JSON or does not conform to the result schema.
	ErrModelOutput = errors.New("model returned non-conforming output")
)
