package extraction

import "context"

// extractionPrompt is the fixed instruction sent with every attachment.
const extractionPrompt = `You are analyzing a receipt or invoice document. Read all visible text carefully and extract the following bookkeeping fields:

1. vendor: the merchant or business name, usually the most prominent text near the top of the receipt.
2. receipt_date: the transaction or invoice date, converted to YYYY-MM-DD format.
3. total: the final amount charged (grand total or amount due), as a number.
4. currency: the currency code, e.g. "USD", "EUR", "GBP".
5. category_suggested: a short bookkeeping category such as Meals, Travel, Office Supplies, Software, Utilities, Fuel, or Lodging. Treat these as examples, not a fixed list.
6. confidence: your overall confidence in the extracted fields, a number between 0 and 1.

Return a single JSON object with exactly these six keys. If you cannot determine a field, use null for it rather than guessing. Do not add any other keys and do not wrap the JSON in markdown.`

// AttachmentKind distinguishes inline image references from native file
// attachments.
type AttachmentKind int

const (
	AttachmentImage AttachmentKind = iota
	AttachmentFile
)

// Attachment is the single document reference passed to an inference call.
// Built fresh per call, never cached.
type Attachment struct {
	Kind     AttachmentKind
	MIMEType string
	Data     []byte
}

// Invoker calls a vision-capable model with exactly one attachment and a
// fixed instruction, returning the raw generated text.
type Invoker interface {
	// Invoke performs one inference call. Implementations may retry once
	// on transient transport failure; nothing is mutated before the call,
	// so a retry is idempotent.
	Invoke(ctx context.Context, att Attachment, instruction string) (string, error)

	// ModelName reports the model identifier for the response envelope.
	ModelName() string

	// SupportsPDF reports whether the backend accepts native PDF file
	// attachments. When false, the orchestrator rasterizes PDFs first.
	SupportsPDF() bool

	// Close releases backend resources.
	Close() error
}
