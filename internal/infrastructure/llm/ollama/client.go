package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/chatbot-rag/internal/observability/metrics"
)

// Client talks to one Ollama server for both embedding and generation.
// Constructed once in bootstrap and shared; it holds no per-request state.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	exec       *resilience.Executor
	log        *slog.Logger
}

type Config struct {
	BaseURL    string
	GenModel   string
	EmbedModel string
	Timeout    time.Duration
}

func New(cfg Config, exec *resilience.Executor, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		genModel:   cfg.GenModel,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
		log:        log,
	}
}

// Embedder converts text into fixed-dimension vectors. In degraded mode a
// failed batch is replaced with zero vectors so ingestion stays available
// while the provider is down; every substitution is logged and counted so it
// is never mistaken for a genuine embedding.
type Embedder struct {
	client    *Client
	dimension int
	degraded  bool
	metrics   *metrics.Pipeline
}

func NewEmbedder(client *Client, dimension int, degradedMode bool, m *metrics.Pipeline) *Embedder {
	return &Embedder{
		client:    client,
		dimension: dimension,
		degraded:  degradedMode,
		metrics:   m,
	}
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embedBatch(ctx, texts)
	if err != nil {
		if !e.degraded {
			return nil, domain.WrapError(domain.ErrEmbeddingProvider, "embed batch", err)
		}
		e.client.log.Warn("substituting zero vectors for unreachable embedding provider",
			"texts", len(texts), "dimension", e.dimension, "error", err)
		e.metrics.EmbedFallback(len(texts))
		return zeroVectors(len(texts), e.dimension), nil
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbeddingProvider, "embed batch",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(texts)))
	}
	return vectors, nil
}

// EmbedQuery never degrades: a zero query vector would silently retrieve
// garbage, so query paths fail loudly instead.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingProvider, "embed query", err)
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingProvider, "embed query",
			fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.execute(ctx, "ollama_embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func zeroVectors(count, dimension int) [][]float32 {
	out := make([][]float32, count)
	for i := range out {
		out[i] = make([]float32, dimension)
	}
	return out
}

// Generator invokes the chat completion endpoint.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, turns []domain.Turn, opts domain.GenerateOptions) (string, error) {
	var response struct {
		Message chatMessage `json:"message"`
	}
	err := g.client.execute(ctx, "ollama_generate", func(callCtx context.Context) error {
		return g.client.postJSON(callCtx, "/api/chat", chatRequest(g.client.genModel, turns, opts, false), &response, "generate")
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Message.Content), nil
}

// GenerateStream yields incremental pieces through onDelta and returns the
// assembled text. Streaming calls are not retried: a replayed prefix would
// corrupt the caller's output.
func (g *Generator) GenerateStream(ctx context.Context, turns []domain.Turn, opts domain.GenerateOptions, onDelta func(string)) (string, error) {
	return g.client.streamChat(ctx, chatRequest(g.client.genModel, turns, opts, true), onDelta)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func chatRequest(model string, turns []domain.Turn, opts domain.GenerateOptions, stream bool) map[string]any {
	messages := make([]chatMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}

	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}

	request := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   stream,
	}
	if len(options) > 0 {
		request["options"] = options
	}
	return request
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.exec == nil {
		return fn(ctx)
	}
	return c.exec.Execute(ctx, operation, fn, classifyProviderError)
}
