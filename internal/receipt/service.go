package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chad775/receiptapp/internal/extraction"
)

// Extractor is the slice of the pipeline the service depends on.
type Extractor interface {
	Normalize(req extraction.Request) (*extraction.DocumentPayload, error)
	ExtractPayload(ctx context.Context, payload *extraction.DocumentPayload) extraction.Outcome
}

// IDGenerator generates unique IDs for extraction records.
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the extraction pipeline once per document and records
// successful runs. A failure on one document never affects another; the
// uploading client calls once per file and aggregates on its side.
type Service struct {
	db          DB
	pipeline    Extractor
	archive     Archive
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with default ID generator and time source.
func NewService(db DB, pipeline Extractor, archive Archive) *Service {
	return &Service{
		db:          db,
		pipeline:    pipeline,
		archive:     archive,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(db DB, pipeline Extractor, archive Archive, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		pipeline:    pipeline,
		archive:     archive,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ProcessDocument normalizes, archives, extracts, and records one document.
// The returned Outcome is the exact response envelope; the record is non-nil
// only on success.
func (s *Service) ProcessDocument(ctx context.Context, req extraction.Request) (extraction.Outcome, *ExtractionRecord) {
	payload, err := s.pipeline.Normalize(req)
	if err != nil {
		return extraction.Failure(err), nil
	}

	archivePath, err := s.archive.Save(payload.Filename, payload.Bytes)
	if err != nil {
		return extraction.Failure(fmt.Errorf("archiving document: %w", err)), nil
	}

	outcome := s.pipeline.ExtractPayload(ctx, payload)
	if !outcome.OK {
		// The archived copy is only useful alongside a record.
		s.discard(archivePath)
		return outcome, nil
	}

	rec := &ExtractionRecord{
		ID:          s.idGenerator.Generate(),
		Filename:    payload.Filename,
		ContentType: payload.MIMEType,
		ModelUsed:   outcome.ModelUsed,
		Result:      *outcome.Result,
		ArchivePath: archivePath,
		CreatedAt:   s.timeSource.Now(),
	}
	if err := s.db.SaveExtraction(rec); err != nil {
		s.discard(archivePath)
		return extraction.Outcome{
			OK:         false,
			Error:      fmt.Sprintf("saving extraction record: %v", err),
			StatusCode: http.StatusInternalServerError,
		}, nil
	}

	return outcome, rec
}

// discard removes an archived file; a cleanup failure is logged, never
// escalated, so it cannot mask the primary result.
func (s *Service) discard(archivePath string) {
	if err := s.archive.Delete(archivePath); err != nil {
		slog.Warn("Failed to delete archived document", "path", archivePath, "error", err)
	}
}

// GetExtraction retrieves a record by ID.
func (s *Service) GetExtraction(id string) (*ExtractionRecord, error) {
	rec, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}
	return rec, nil
}

// ListExtractions returns all records.
func (s *Service) ListExtractions() ([]*ExtractionRecord, error) {
	records, err := s.db.ListExtractions()
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	return records, nil
}

// GetExtractionFile retrieves the archived original for a record.
func (s *Service) GetExtractionFile(id string) ([]byte, string, error) {
	rec, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting extraction: %w", err)
	}

	data, err := s.archive.Get(rec.ArchivePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting archived document: %w", err)
	}
	return data, rec.ContentType, nil
}

// DeleteExtraction removes a record and its archived document.
func (s *Service) DeleteExtraction(id string) error {
	rec, err := s.db.GetExtraction(id)
	if err != nil {
		return fmt.Errorf("getting extraction for deletion: %w", err)
	}

	if rec.ArchivePath != "" {
		s.discard(rec.ArchivePath)
	}

	if err := s.db.DeleteExtraction(id); err != nil {
		return fmt.Errorf("deleting extraction: %w", err)
	}
	return nil
}
