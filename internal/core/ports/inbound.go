package ports

import (
	"context"
	"io"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

// SourceRegistration is the ingestion entry point consumed by the
// surrounding CRUD layer.
type SourceRegistration struct {
	SourceID  string
	Type      domain.SourceType
	Origin    string
	Body      io.Reader
	Namespace string
	Extra     map[string]string
}

// SourceIngestor registers sources for asynchronous ingestion.
type SourceIngestor interface {
	Register(ctx context.Context, reg SourceRegistration) (*domain.Source, error)
}

// SourceProcessor runs the extract-chunk-embed-upload pipeline for one
// registered source. The returned report is also persisted on the source;
// the error covers infrastructure faults only, never stage outcomes.
type SourceProcessor interface {
	Process(ctx context.Context, sourceID string) (*domain.IngestReport, error)
}

// ContextRetriever returns ranked context for a question. Empty results are
// a legitimate outcome, not an error.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, opts RetrieveOptions) []domain.RetrievalMatch
}

// RetrieveOptions shape one similarity query.
type RetrieveOptions struct {
	TopK           int
	ScoreThreshold float64
	Filter         map[string]string
	Namespace      string
}

// Conversationalist answers one utterance end to end.
type Conversationalist interface {
	Complete(ctx context.Context, utterance string, history []domain.Turn, namespace string) (*domain.ChatResult, error)
}
