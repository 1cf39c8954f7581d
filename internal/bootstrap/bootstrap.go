package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/chatbot-rag/internal/config"
	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
	"github.com/kirillkom/chatbot-rag/internal/core/usecase"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/extractor/filetext"
	pdfx "github.com/kirillkom/chatbot-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/extractor/web"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/llm/ollama"
	natsqueue "github.com/kirillkom/chatbot-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/chatbot-rag/internal/observability/metrics"
)

// App wires the full pipeline. Both binaries build the same graph and use
// the slice of it they need.
type App struct {
	Config  config.Config
	Metrics *metrics.Pipeline

	Queue    ports.MessageQueue
	Repo     ports.SourceRepository
	VectorDB ports.VectorStore

	RegisterUC ports.SourceIngestor
	ProcessUC  ports.SourceProcessor
	RetrieveUC ports.ContextRetriever
	ChatUC     ports.Conversationalist

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Pipeline) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSourceRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	exec := resilience.NewExecutor(resilience.DefaultConfig(), log)

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: exec,
		Logger:             log,
		OnQueueLag:         m.ObserveQueueLag,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(ollama.Config{
		BaseURL:    cfg.OllamaURL,
		GenModel:   cfg.OllamaGenModel,
		EmbedModel: cfg.OllamaEmbedModel,
	}, exec, log)
	embedder := ollama.NewEmbedder(ollamaClient, cfg.EmbedDimension, cfg.EmbedFallbackEnabled, m)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(qdrant.Config{
		BaseURL:    cfg.QdrantURL,
		Collection: cfg.QdrantCollection,
		Dimension:  cfg.EmbedDimension,
	}, log, m)
	if cfg.ProvisionQdrant {
		if err := vectorDB.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("provision qdrant collection: %w", err)
		}
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	extractors := map[domain.SourceType]ports.Extractor{
		domain.SourceFileText:    filetext.New(storage),
		domain.SourceBinaryDoc:   pdfx.New(storage, log),
		domain.SourceSpreadsheet: spreadsheet.New(storage),
		domain.SourceWebPage: web.New(web.Options{
			Timeout:        cfg.WebFetchTimeout,
			RequestsPerSec: cfg.WebFetchRPS,
		}),
	}

	registerUC := usecase.NewRegisterSourceUseCase(repo, storage, queue)
	processUC := usecase.NewProcessSourceUseCase(repo, extractors, chunker, embedder, vectorDB, log)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, vectorDB, log)

	router := usecase.NewRouter(nil, log,
		usecase.WithClassifier(generator),
		usecase.WithDecisionHook(func(d domain.RouteDecision) {
			m.RouteDecision(string(d.Target), d.Reason)
		}),
	)
	chatUC := usecase.NewChatUseCase(router, retrieveUC, generator, postgres.NewPreferenceTool(db, log), log)
	chatUC.TopK = cfg.RetrievalTopK
	chatUC.ScoreThreshold = cfg.ScoreThreshold

	return &App{
		Config:  cfg,
		Metrics: m,

		Queue:    queue,
		Repo:     repo,
		VectorDB: vectorDB,

		RegisterUC: registerUC,
		ProcessUC:  processUC,
		RetrieveUC: retrieveUC,
		ChatUC:     chatUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
