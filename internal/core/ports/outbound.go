package ports

import (
	"context"
	"io"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

// SourceRepository persists source registrations and run outcomes.
type SourceRepository interface {
	Create(ctx context.Context, src *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, message string) error
	SaveReport(ctx context.Context, report domain.IngestReport) error
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries source ids from registration to the ingestion worker.
type MessageQueue interface {
	PublishSourceRegistered(ctx context.Context, sourceID string) error
	SubscribeSourceRegistered(ctx context.Context, handler func(context.Context, string) error) error
}

// Extractor converts one source into plain text.
type Extractor interface {
	Extract(ctx context.Context, src *domain.Source) (string, error)
}

// Chunker splits extracted text into bounded overlapping chunks.
type Chunker interface {
	Split(sourceID, text string) []domain.Chunk
}

// Embedder builds fixed-dimension vectors for chunks and query text.
// Embed preserves input count and order. Dimension reports the configured
// vector size so the store can be checked against it at startup.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorStore is the namespaced external vector index.
type VectorStore interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, records []domain.VectorRecord, namespace string) (domain.UpsertResult, error)
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string, namespace string) ([]domain.RetrievalMatch, error)
	Delete(ctx context.Context, ids []string, namespace string) error
}

// Generator invokes the generative model.
type Generator interface {
	Generate(ctx context.Context, turns []domain.Turn, opts domain.GenerateOptions) (string, error)
	GenerateStream(ctx context.Context, turns []domain.Turn, opts domain.GenerateOptions, onDelta func(string)) (string, error)
}

// DataTool executes one validated structured query. Failures are encoded in
// the result string with an "ERROR:" prefix, never raised.
type DataTool interface {
	Execute(ctx context.Context, query string) string
}
