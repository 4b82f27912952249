package extraction

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
)

// Kind classifies a normalized document payload.
type Kind int

const (
	KindImage Kind = iota
	KindPDF
)

// Encoding records how the payload arrived on the wire.
type Encoding int

const (
	EncodingDataURL Encoding = iota
	EncodingRawBase64
)

const (
	// DefaultMaxPayloadBytes caps decoded payloads at 14MB.
	DefaultMaxPayloadBytes = 14 << 20

	// DefaultMinPDFBytes rejects decoded PDFs below 2KB; no real receipt
	// PDF is that small, but a JSON-truncated upload often is.
	DefaultMinPDFBytes = 2 << 10
)

// Limits are the payload size bounds enforced by Normalize.
type Limits struct {
	MaxPayloadBytes int
	MinPDFBytes     int
}

func (l Limits) withDefaults() Limits {
	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if l.MinPDFBytes <= 0 {
		l.MinPDFBytes = DefaultMinPDFBytes
	}
	return l
}

// Request is the wire shape accepted by the extraction endpoint. Exactly one
// of ImageDataURL or FileBase64 is expected; FileName and MIMEType accompany
// the FileBase64 path.
type Request struct {
	ImageDataURL string `json:"imageDataUrl,omitempty"`
	FileBase64   string `json:"fileBase64,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	MIMEType     string `json:"mimeType,omitempty"`
}

// DocumentPayload is the validated, decoded input unit. It lives for a single
// pipeline run and is never persisted by the pipeline itself.
type DocumentPayload struct {
	Kind     Kind
	Encoding Encoding
	MIMEType string
	Bytes    []byte
	Filename string
}

// Normalize validates and decodes a raw request into a DocumentPayload.
// All rejection happens here, before any rasterization or external call.
func Normalize(req Request, limits Limits) (*DocumentPayload, error) {
	limits = limits.withDefaults()

	if req.ImageDataURL == "" && req.FileBase64 == "" {
		return nil, ErrMissingInput
	}

	if isPDFRequest(req) {
		return normalizePDF(req, limits)
	}
	if strings.HasPrefix(req.ImageDataURL, "data:image/") {
		return normalizeImage(req)
	}
	return nil, fmt.Errorf("%w: expected an image data URL or a PDF", ErrUnsupportedType)
}

// isPDFRequest applies the classification rules in order: declared MIME type,
// filename extension, then data-URL prefix.
func isPDFRequest(req Request) bool {
	if strings.EqualFold(strings.TrimSpace(req.MIMEType), "application/pdf") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(req.FileName), ".pdf") {
		return true
	}
	return strings.HasPrefix(req.ImageDataURL, "data:application/pdf")
}

func normalizePDF(req Request, limits Limits) (*DocumentPayload, error) {
	var (
		raw      []byte
		encoding Encoding
		err      error
	)
	if req.ImageDataURL != "" {
		encoding = EncodingDataURL
		_, raw, err = parseDataURL(req.ImageDataURL)
	} else {
		encoding = EncodingRawBase64
		raw, err = decodeBase64(req.FileBase64)
	}
	if err != nil {
		return nil, err
	}

	if len(raw) < limits.MinPDFBytes {
		return nil, fmt.Errorf("%w: decoded PDF is %d bytes", ErrTruncatedPayload, len(raw))
	}
	if len(raw) > limits.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: decoded PDF is %d bytes, maximum is %d", ErrPayloadTooLarge, len(raw), limits.MaxPayloadBytes)
	}
	if !mimetype.Detect(raw).Is("application/pdf") {
		return nil, fmt.Errorf("%w: content does not look like a PDF", ErrUnsupportedType)
	}

	return &DocumentPayload{
		Kind:     KindPDF,
		Encoding: encoding,
		MIMEType: "application/pdf",
		Bytes:    raw,
		Filename: req.FileName,
	}, nil
}

func normalizeImage(req Request) (*DocumentPayload, error) {
	declared, raw, err := parseDataURL(req.ImageDataURL)
	if err != nil {
		return nil, err
	}

	// Trust sniffed bytes over the declared subtype; browsers routinely
	// mislabel camera uploads.
	sniffed := mimetype.Detect(raw)
	if !strings.HasPrefix(sniffed.String(), "image/") {
		return nil, fmt.Errorf("%w: content does not look like an image", ErrUnsupportedType)
	}
	if declared == "" {
		declared = sniffed.String()
	}

	return &DocumentPayload{
		Kind:     KindImage,
		Encoding: EncodingDataURL,
		MIMEType: declared,
		Bytes:    raw,
		Filename: req.FileName,
	}, nil
}

// parseDataURL splits a data:<mime>;base64,<payload> string and decodes the
// payload. Only base64 data URLs are accepted.
func parseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data URL", ErrMalformedBase64)
	}

	header, body, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: data URL has no payload separator", ErrMalformedBase64)
	}

	params := strings.Split(header, ";")
	if len(params) < 2 || params[len(params)-1] != "base64" {
		return "", nil, fmt.Errorf("%w: data URL is not base64-encoded", ErrMalformedBase64)
	}
	mime := strings.TrimSpace(params[0])

	raw, err := decodeBase64(body)
	if err != nil {
		return "", nil, err
	}
	return mime, raw, nil
}

// decodeBase64 decodes standard base64, tolerating interior whitespace and
// missing padding. JSON transports commonly introduce both.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBase64, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedBase64)
	}
	return raw, nil
}
