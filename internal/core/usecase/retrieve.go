package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
)

// RetrieveUseCase turns a question into ranked context documents. Failures
// degrade to an empty result: "no context available" is a legitimate
// outcome for downstream generation, distinct from an exception.
type RetrieveUseCase struct {
	embedder ports.Embedder
	vectorDB ports.VectorStore
	log      *slog.Logger
}

func NewRetrieveUseCase(embedder ports.Embedder, vectorDB ports.VectorStore, log *slog.Logger) *RetrieveUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &RetrieveUseCase{
		embedder: embedder,
		vectorDB: vectorDB,
		log:      log,
	}
}

func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, opts ports.RetrieveOptions) []domain.RetrievalMatch {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		uc.log.Warn("query embedding failed, returning no context", "error", err)
		return nil
	}

	matches, err := uc.vectorDB.Query(ctx, vector, opts.TopK, opts.Filter, opts.Namespace)
	if err != nil {
		uc.log.Warn("vector search failed, returning no context", "error", err)
		return nil
	}

	out := make([]domain.RetrievalMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score < opts.ScoreThreshold {
			continue
		}
		if strings.TrimSpace(m.Text) == "" {
			// Malformed record; dropping it beats handing garbage downstream.
			uc.log.Warn("dropping match without text metadata", "chunk_id", m.ChunkID, "score", m.Score)
			continue
		}
		out = append(out, m)
	}
	return out
}
