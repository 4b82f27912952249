package receipt

import (
	"time"

	"github.com/chad775/receiptapp/internal/extraction"
)

// ExtractionRecord is one completed pipeline run, kept so staff can review
// and re-open past extractions. The caller owns any further persistence.
type ExtractionRecord struct {
	ID          string                      `json:"id"`
	Filename    string                      `json:"filename,omitempty"`
	ContentType string                      `json:"content_type"`
	ModelUsed   string                      `json:"model_used"`
	Result      extraction.ExtractionResult `json:"result"`
	ArchivePath string                      `json:"archive_path,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
}
