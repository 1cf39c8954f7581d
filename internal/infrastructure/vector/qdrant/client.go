package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/observability/metrics"
)

// batchSize is the fixed upload batch size. Batches are attempted
// sequentially and independently: one failed batch is skipped, the rest
// still upload.
const batchSize = 100

// namespaceKey partitions tenants inside one collection via payload filters.
const namespaceKey = "namespace"

// pointNamespace seeds the UUIDv5 derivation of point ids. Qdrant requires
// UUID point ids; hashing the deterministic chunk id keeps re-ingestion
// idempotent (same chunk, same point, overwrite).
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

type Client struct {
	baseURL    string
	collection string
	dimension  int
	httpClient *http.Client
	log        *slog.Logger
	metrics    *metrics.Pipeline
}

type Config struct {
	BaseURL    string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func New(cfg Config, log *slog.Logger, m *metrics.Pipeline) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		metrics:    m,
	}
}

// Init verifies the collection exists and its vector size matches the
// embedder's dimension. Both problems are configuration errors: they fail
// the process at startup, never a single request. Init does not create the
// collection; provisioning uses EnsureCollection.
func (c *Client) Init(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create collection info request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrConfiguration, "reach vector store", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.WrapError(domain.ErrConfiguration, "verify collection",
			fmt.Errorf("collection %q does not exist", c.collection))
	}
	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrConfiguration, "verify collection", statusError(resp))
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.WrapError(domain.ErrConfiguration, "decode collection info", err)
	}
	if size := info.Result.Config.Params.Vectors.Size; size != c.dimension {
		return domain.WrapError(domain.ErrConfiguration, "verify collection",
			fmt.Errorf("collection dimension %d does not match embedder dimension %d", size, c.dimension))
	}
	return nil
}

// EnsureCollection creates the collection when it is absent. Provisioning
// only; the serving path relies on Init.
func (c *Client) EnsureCollection(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     c.dimension,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrVectorStore, "create collection", err)
	}
	defer resp.Body.Close()

	// 409: already exists, which is fine for provisioning.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrVectorStore, "create collection", statusError(resp))
	}
	return nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert uploads records in fixed-size batches, folding per-batch outcomes
// into one result. A failed batch is logged, counted and skipped; the
// remaining batches still run, so a single bad batch cannot lose data that
// the store already accepted. Partial success is a reported outcome, not an
// error; only a run where every batch failed returns one.
func (c *Client) Upsert(ctx context.Context, records []domain.VectorRecord, namespace string) (domain.UpsertResult, error) {
	result := domain.UpsertResult{Total: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	var firstErr error
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := records[start:end]

		if err := c.upsertBatch(ctx, batch, namespace); err != nil {
			c.log.Warn("upsert batch failed, continuing with next batch",
				"collection", c.collection,
				"namespace", namespace,
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			c.metrics.UpsertBatchFailure()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.Upserted += len(batch)
	}

	if result.Upserted == 0 {
		return result, domain.WrapError(domain.ErrVectorStore, "upsert", firstErr)
	}
	return result, nil
}

func (c *Client) upsertBatch(ctx context.Context, records []domain.VectorRecord, namespace string) error {
	points := make([]point, 0, len(records))
	for _, rec := range records {
		points = append(points, point{
			ID:      PointID(rec.ID),
			Vector:  rec.Values,
			Payload: payloadFromMeta(rec.ID, rec.Meta, namespace),
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

// Query runs a similarity search. The caller filter and namespace are
// compiled into store-side payload predicates; scores are returned as the
// store computed them, thresholding belongs to the retriever.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, filter map[string]string, namespace string) ([]domain.RetrievalMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	request := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if clause := filterClause(filter, namespace); clause != nil {
		request["filter"] = clause
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVectorStore, "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrVectorStore, "search", statusError(resp))
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, domain.WrapError(domain.ErrVectorStore, "decode search response", err)
	}

	out := make([]domain.RetrievalMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, matchFromPayload(r.Score, r.Payload))
	}
	return out, nil
}

// Delete removes the points behind the given logical chunk ids.
func (c *Client) Delete(ctx context.Context, ids []string, _ string) error {
	if len(ids) == 0 {
		return nil
	}

	points := make([]string, 0, len(ids))
	for _, id := range ids {
		points = append(points, PointID(id))
	}
	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal delete body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrVectorStore, "delete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrVectorStore, "delete", statusError(resp))
	}
	return nil
}

// PointID maps a logical chunk id onto the UUID form the store requires.
// Deterministic: the same chunk id always yields the same point id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func payloadFromMeta(chunkID string, meta domain.ChunkMeta, namespace string) map[string]any {
	payload := map[string]any{
		"chunk_id":     chunkID,
		"source_id":    meta.SourceID,
		"source_type":  string(meta.SourceType),
		"chunk_seq_id": meta.Index,
		"text":         meta.Text,
		"timestamp":    meta.IngestedAt.UTC().Format(time.RFC3339),
	}
	if namespace != "" {
		payload[namespaceKey] = namespace
	}
	for k, v := range meta.Extra {
		if _, taken := payload[k]; !taken {
			payload[k] = v
		}
	}
	return payload
}

func matchFromPayload(score float64, payload map[string]any) domain.RetrievalMatch {
	meta := domain.ChunkMeta{
		SourceID:   payloadString(payload, "source_id"),
		SourceType: domain.SourceType(payloadString(payload, "source_type")),
		Index:      payloadInt(payload, "chunk_seq_id"),
		Text:       payloadString(payload, "text"),
	}
	if ts, err := time.Parse(time.RFC3339, payloadString(payload, "timestamp")); err == nil {
		meta.IngestedAt = ts
	}
	return domain.RetrievalMatch{
		ChunkID: payloadString(payload, "chunk_id"),
		Score:   score,
		Text:    meta.Text,
		Meta:    meta,
	}
}

func filterClause(filter map[string]string, namespace string) map[string]any {
	must := make([]map[string]any, 0, len(filter)+1)
	if namespace != "" {
		must = append(must, matchClause(namespaceKey, namespace))
	}
	for key, value := range filter {
		must = append(must, matchClause(key, value))
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchClause(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	if f, ok := payload[key].(float64); ok {
		return int(f)
	}
	return 0
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("qdrant status: %s: %s", resp.Status, msg)
	}
	return fmt.Errorf("qdrant status: %s", resp.Status)
}
