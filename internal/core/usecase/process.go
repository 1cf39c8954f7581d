package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
)

// Stage messages carried by failed runs.
const (
	msgExtractionFailed = "extraction failed"
	msgNoTextExtracted  = "no text extracted"
	msgNoChunks         = "no chunks generated"
	msgEmbeddingFailed  = "embedding failed"
	msgUploadFailed     = "upload failed"
)

// ProcessSourceUseCase runs one source through
// extract -> chunk -> embed -> upload, single pass, no cross-stage retry.
// Stage failures become terminal report statuses, never errors: the
// returned error covers repository faults only.
type ProcessSourceUseCase struct {
	repo       ports.SourceRepository
	extractors map[domain.SourceType]ports.Extractor
	chunker    ports.Chunker
	embedder   ports.Embedder
	vectorDB   ports.VectorStore
	log        *slog.Logger
}

func NewProcessSourceUseCase(
	repo ports.SourceRepository,
	extractors map[domain.SourceType]ports.Extractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	log *slog.Logger,
) *ProcessSourceUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessSourceUseCase{
		repo:       repo,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		vectorDB:   vectorDB,
		log:        log,
	}
}

func (uc *ProcessSourceUseCase) Process(ctx context.Context, sourceID string) (*domain.IngestReport, error) {
	started := time.Now()

	src, err := uc.repo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("fetch source by id: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, src.ID, domain.SourceIngesting, ""); err != nil {
		return nil, fmt.Errorf("set status=ingesting: %w", err)
	}

	report := uc.run(ctx, src)
	report.SourceID = src.ID
	report.Duration = time.Since(started)

	if err := uc.repo.SaveReport(ctx, *report); err != nil {
		return report, fmt.Errorf("save ingest report: %w", err)
	}

	uc.log.Info("ingestion run finished",
		"source_id", src.ID,
		"status", report.Status,
		"chunks", report.ChunksProcessed,
		"vectors", report.VectorsUploaded,
		"duration", report.Duration,
	)
	return report, nil
}

func (uc *ProcessSourceUseCase) run(ctx context.Context, src *domain.Source) *domain.IngestReport {
	extractor, ok := uc.extractors[src.Type]
	if !ok {
		return failed(msgExtractionFailed, fmt.Errorf("no extractor for source type %q", src.Type))
	}

	text, err := extractor.Extract(ctx, src)
	if err != nil {
		uc.log.Error("extraction failed", "source_id", src.ID, "type", src.Type, "error", err)
		return failed(msgExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		// No-op input, not an error: the source simply had nothing to index.
		return warning(msgNoTextExtracted)
	}

	chunks := uc.chunker.Split(src.ID, text)
	if len(chunks) == 0 {
		return warning(msgNoChunks)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		uc.log.Error("embedding failed", "source_id", src.ID, "chunks", len(chunks), "error", err)
		return failedChunks(msgEmbeddingFailed, len(chunks))
	}
	if len(vectors) != len(chunks) {
		uc.log.Error("embedding failed",
			"source_id", src.ID, "error",
			fmt.Sprintf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
		return failedChunks(msgEmbeddingFailed, len(chunks))
	}

	now := time.Now().UTC()
	records := make([]domain.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.VectorRecord{
			ID:     c.ID(),
			Values: vectors[i],
			Meta: domain.ChunkMeta{
				SourceID:   src.ID,
				SourceType: src.Type,
				Index:      c.Index,
				Text:       c.Text,
				IngestedAt: now,
				Extra:      src.Extra,
			},
		}
	}

	result, err := uc.vectorDB.Upsert(ctx, records, src.Namespace)
	if err != nil {
		uc.log.Error("upload failed", "source_id", src.ID, "error", err)
		return failedChunks(msgUploadFailed, len(chunks))
	}

	report := &domain.IngestReport{
		Status:          domain.IngestSuccess,
		ChunksProcessed: len(chunks),
		VectorsUploaded: result.Upserted,
	}
	if result.Partial() {
		report.Status = domain.IngestPartial
		report.Message = fmt.Sprintf("uploaded %d of %d vectors", result.Upserted, result.Total)
	}
	return report
}

func failed(message string, err error) *domain.IngestReport {
	return &domain.IngestReport{
		Status:  domain.IngestError,
		Message: fmt.Sprintf("%s: %v", message, err),
	}
}

func failedChunks(message string, chunks int) *domain.IngestReport {
	return &domain.IngestReport{
		Status:          domain.IngestError,
		Message:         message,
		ChunksProcessed: chunks,
	}
}

func warning(message string) *domain.IngestReport {
	return &domain.IngestReport{
		Status:  domain.IngestWarning,
		Message: message,
	}
}
