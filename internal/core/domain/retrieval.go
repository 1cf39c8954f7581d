package domain

// RetrievalMatch is one scored result of a similarity query. Produced
// transiently per query, never persisted.
type RetrievalMatch struct {
	ChunkID string    `json:"chunk_id"`
	Score   float64   `json:"score"`
	Text    string    `json:"text"`
	Meta    ChunkMeta `json:"meta"`
}
