package domain

import (
	"fmt"
	"time"
)

// Chunk is a bounded, possibly overlapping slice of extracted source text.
// Start/End are byte offsets into the extracted text.
type Chunk struct {
	SourceID string
	Index    int
	Text     string
	Start    int
	End      int
}

// ID derives the deterministic vector id for this chunk. Re-ingesting the
// same source produces identical ids, so uploads overwrite prior vectors
// instead of duplicating them.
func (c Chunk) ID() string {
	return ChunkID(c.SourceID, c.Index)
}

func ChunkID(sourceID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", sourceID, index)
}

// ChunkMeta is the payload stored alongside every vector. The pipeline
// depends on the named fields; Extra carries caller-supplied values opaque
// to the pipeline.
type ChunkMeta struct {
	SourceID   string            `json:"source_id"`
	SourceType SourceType        `json:"source_type"`
	Index      int               `json:"chunk_seq_id"`
	Text       string            `json:"text"`
	IngestedAt time.Time         `json:"ingested_at"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// VectorRecord is the persisted (id, values, metadata) triple.
type VectorRecord struct {
	ID     string
	Values []float32
	Meta   ChunkMeta
}

// UpsertResult reports how many records the store accepted. Upserted < Total
// means partial success: some batches failed and were skipped, the rest went
// through.
type UpsertResult struct {
	Upserted int
	Total    int
}

func (r UpsertResult) Partial() bool {
	return r.Upserted > 0 && r.Upserted < r.Total
}
