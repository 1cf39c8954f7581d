package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
)

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Source) (string, error) {
	return f.text, f.err
}

type chunkerFake struct {
	chunks []domain.Chunk
}

func (f *chunkerFake) Split(string, string) []domain.Chunk {
	return f.chunks
}

type embedderFake struct {
	dim int
	err error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, f.dim), nil
}

func (f *embedderFake) Dimension() int { return f.dim }

type vectorStoreFake struct {
	records   []domain.VectorRecord
	namespace string
	upserted  int
	err       error
}

func (f *vectorStoreFake) Init(context.Context) error { return nil }

func (f *vectorStoreFake) Upsert(_ context.Context, records []domain.VectorRecord, namespace string) (domain.UpsertResult, error) {
	if f.err != nil {
		return domain.UpsertResult{}, f.err
	}
	f.records = records
	f.namespace = namespace
	upserted := f.upserted
	if upserted == 0 {
		upserted = len(records)
	}
	return domain.UpsertResult{Upserted: upserted, Total: len(records)}, nil
}

func (f *vectorStoreFake) Query(context.Context, []float32, int, map[string]string, string) ([]domain.RetrievalMatch, error) {
	return nil, errors.New("not implemented")
}

func (f *vectorStoreFake) Delete(context.Context, []string, string) error {
	return errors.New("not implemented")
}

func processFixture(src *domain.Source, extractor ports.Extractor, chunker ports.Chunker, embedder ports.Embedder, store ports.VectorStore) (*ProcessSourceUseCase, *sourceRepoFake) {
	repo := &sourceRepoFake{byID: map[string]*domain.Source{src.ID: src}}
	uc := NewProcessSourceUseCase(
		repo,
		map[domain.SourceType]ports.Extractor{src.Type: extractor},
		chunker,
		embedder,
		store,
		nil,
	)
	return uc, repo
}

func textSource() *domain.Source {
	return &domain.Source{
		ID:        "src-1",
		Type:      domain.SourceFileText,
		Origin:    "src-1_notes.txt",
		Namespace: "docs",
		Extra:     map[string]string{"team": "support"},
	}
}

func TestProcessSuccess(t *testing.T) {
	src := textSource()
	chunks := []domain.Chunk{
		{SourceID: src.ID, Index: 0, Text: "alpha"},
		{SourceID: src.ID, Index: 1, Text: "beta"},
	}
	store := &vectorStoreFake{}
	uc, repo := processFixture(src, &extractorFake{text: "alpha beta"}, &chunkerFake{chunks: chunks}, &embedderFake{dim: 4}, store)

	report, err := uc.Process(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if report.Status != domain.IngestSuccess {
		t.Fatalf("expected success, got %s (%s)", report.Status, report.Message)
	}
	if report.ChunksProcessed != 2 || report.VectorsUploaded != 2 {
		t.Fatalf("expected 2/2, got %d/%d", report.ChunksProcessed, report.VectorsUploaded)
	}
	if len(repo.statuses) == 0 || repo.statuses[0] != domain.SourceIngesting {
		t.Fatalf("expected status=ingesting first, got %v", repo.statuses)
	}
	if len(repo.reports) != 1 {
		t.Fatalf("expected saved report, got %d", len(repo.reports))
	}
	if store.namespace != "docs" {
		t.Fatalf("expected namespace docs, got %s", store.namespace)
	}
	if store.records[1].ID != "src-1_chunk_1" {
		t.Fatalf("expected deterministic record id, got %s", store.records[1].ID)
	}
	if store.records[0].Meta.Extra["team"] != "support" {
		t.Fatalf("expected source extra carried into metadata")
	}
}

func TestProcessEmptyTextIsWarning(t *testing.T) {
	src := textSource()
	uc, _ := processFixture(src, &extractorFake{text: "   \n"}, &chunkerFake{}, &embedderFake{dim: 4}, &vectorStoreFake{})

	report, err := uc.Process(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if report.Status != domain.IngestWarning {
		t.Fatalf("expected warning, got %s", report.Status)
	}
	if report.Message != "no text extracted" {
		t.Fatalf("unexpected message %q", report.Message)
	}
}

func TestProcessExtractionFailure(t *testing.T) {
	src := textSource()
	uc, _ := processFixture(src, &extractorFake{err: errors.New("disk gone")}, &chunkerFake{}, &embedderFake{dim: 4}, &vectorStoreFake{})

	report, err := uc.Process(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if report.Status != domain.IngestError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
	if !strings.HasPrefix(report.Message, "extraction failed") {
		t.Fatalf("expected extraction stage message, got %q", report.Message)
	}
}

func TestProcessEmbeddingFailure(t *testing.T) {
	src := textSource()
	chunks := []domain.Chunk{{SourceID: src.ID, Index: 0, Text: "alpha"}}
	uc, _ := processFixture(src, &extractorFake{text: "alpha"}, &chunkerFake{chunks: chunks}, &embedderFake{dim: 4, err: errors.New("provider down")}, &vectorStoreFake{})

	report, err := uc.Process(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if report.Status != domain.IngestError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
	if report.Message != "embedding failed" {
		t.Fatalf("unexpected message %q", report.Message)
	}
	if report.ChunksProcessed != 1 {
		t.Fatalf("expected processed chunk count preserved, got %d", report.ChunksProcessed)
	}
}

func TestProcessPartialUpload(t *testing.T) {
	src := textSource()
	chunks := []domain.Chunk{
		{SourceID: src.ID, Index: 0, Text: "alpha"},
		{SourceID: src.ID, Index: 1, Text: "beta"},
		{SourceID: src.ID, Index: 2, Text: "gamma"},
	}
	store := &vectorStoreFake{upserted: 2}
	uc, _ := processFixture(src, &extractorFake{text: "alpha beta gamma"}, &chunkerFake{chunks: chunks}, &embedderFake{dim: 4}, store)

	report, err := uc.Process(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if report.Status != domain.IngestPartial {
		t.Fatalf("expected partial_success, got %s", report.Status)
	}
	if !strings.Contains(report.Message, "uploaded 2 of 3") {
		t.Fatalf("unexpected message %q", report.Message)
	}
	if report.SourceStatus() != domain.SourcePartial {
		t.Fatalf("expected partial source status, got %s", report.SourceStatus())
	}
}

func TestProcessUnknownSource(t *testing.T) {
	uc := NewProcessSourceUseCase(
		&sourceRepoFake{byID: map[string]*domain.Source{}},
		map[domain.SourceType]ports.Extractor{},
		&chunkerFake{}, &embedderFake{dim: 4}, &vectorStoreFake{}, nil,
	)

	_, err := uc.Process(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
