package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

func testRecords(n int) []domain.VectorRecord {
	out := make([]domain.VectorRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.VectorRecord{
			ID:     domain.ChunkID("src-1", i),
			Values: []float32{1, 0, 0},
			Meta: domain.ChunkMeta{
				SourceID:   "src-1",
				SourceType: domain.SourceFileText,
				Index:      i,
				Text:       fmt.Sprintf("chunk %d", i),
				IngestedAt: time.Unix(1700000000, 0),
			},
		})
	}
	return out
}

func TestUpsertContinuesPastFailedBatch(t *testing.T) {
	var upsertCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		upsertCalls++
		if upsertCalls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Collection: "kb", Dimension: 3}, nil, nil)
	result, err := c.Upsert(context.Background(), testRecords(250), "tenant-a")
	if err != nil {
		t.Fatalf("Upsert() error = %v, want partial success without error", err)
	}
	if upsertCalls != 3 {
		t.Fatalf("expected 3 batch calls, got %d", upsertCalls)
	}
	if result.Total != 250 || result.Upserted != 150 {
		t.Fatalf("expected 150/250 upserted, got %d/%d", result.Upserted, result.Total)
	}
	if !result.Partial() {
		t.Fatalf("expected partial result")
	}
}

func TestUpsertAllBatchesFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Collection: "kb", Dimension: 3}, nil, nil)
	result, err := c.Upsert(context.Background(), testRecords(10), "")
	if !domain.IsKind(err, domain.ErrVectorStore) {
		t.Fatalf("expected ErrVectorStore, got %v", err)
	}
	if result.Upserted != 0 || result.Total != 10 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestUpsertSendsDeterministicPointIDs(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Points []struct {
				ID      string         `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode upsert: %v", err)
		}
		for _, p := range req.Points {
			ids = append(ids, p.ID)
			if p.Payload["namespace"] != "tenant-a" {
				t.Errorf("missing namespace payload: %v", p.Payload)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Collection: "kb", Dimension: 3}, nil, nil)
	if _, err := c.Upsert(context.Background(), testRecords(2), "tenant-a"); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if _, err := c.Upsert(context.Background(), testRecords(2), "tenant-a"); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	if len(ids) != 4 {
		t.Fatalf("expected 4 point ids, got %d", len(ids))
	}
	if ids[0] != ids[2] || ids[1] != ids[3] {
		t.Fatalf("re-ingestion produced different point ids: %v", ids)
	}
	if ids[0] == ids[1] {
		t.Fatalf("distinct chunks share a point id: %v", ids)
	}
	if ids[0] != PointID(domain.ChunkID("src-1", 0)) {
		t.Fatalf("point id is not derived from the logical chunk id")
	}
}

func TestInitMissingCollectionIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Collection: "kb", Dimension: 3}, nil, nil)
	if err := c.Init(context.Background()); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestInitDimensionMismatchIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{"size": 768},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Collection: "kb", Dimension: 384}, nil, nil)
	if err := c.Init(context.Background()); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration on dimension mismatch, got %v", err)
	}

	c = New(Config{BaseURL: srv.URL, Collection: "kb", Dimension: 768}, nil, nil)
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() with matching dimension error = %v", err)
	}
}

func TestQueryAppliesNamespaceFilterAndParsesMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Limit  int `json:"limit"`
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode search: %v", err)
		}
		if req.Limit != 3 {
			t.Errorf("limit = %d, want 3", req.Limit)
		}
		keys := map[string]string{}
		for _, m := range req.Filter.Must {
			keys[m.Key] = m.Match.Value
		}
		if keys["namespace"] != "tenant-a" || keys["source_id"] != "src-1" {
			t.Errorf("unexpected filter clauses %v", keys)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"score": 0.91,
					"payload": map[string]any{
						"chunk_id":     "src-1_chunk_0",
						"source_id":    "src-1",
						"source_type":  "file-text",
						"chunk_seq_id": 0,
						"text":         "relevant text",
						"timestamp":    "2024-01-01T00:00:00Z",
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Collection: "kb", Dimension: 3}, nil, nil)
	matches, err := c.Query(context.Background(), []float32{1, 0, 0}, 3,
		map[string]string{"source_id": "src-1"}, "tenant-a")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if m.ChunkID != "src-1_chunk_0" || m.Score != 0.91 || m.Text != "relevant text" {
		t.Fatalf("unexpected match %+v", m)
	}
	if m.Meta.SourceType != domain.SourceFileText || m.Meta.Index != 0 {
		t.Fatalf("unexpected match meta %+v", m.Meta)
	}
}
