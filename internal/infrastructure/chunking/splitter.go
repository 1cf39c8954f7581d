package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

// separators in boundary priority order: paragraph break, line break,
// sentence break, clause break, whitespace. A window with none of them is
// hard-cut at the size limit.
var separators = []string{"\n\n", "\n", ". ", ", ", " "}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split cuts text into chunks of at most ChunkSize bytes, preferring natural
// boundaries, with consecutive chunks sharing Overlap trailing bytes of the
// prior chunk. Pure and deterministic: identical input yields identical
// chunk boundaries, which is what makes ingestion idempotent.
func (s *Splitter) Split(sourceID, text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	out := make([]domain.Chunk, 0, len(text)/s.ChunkSize+1)
	start := 0
	for start < len(text) {
		end := s.cutPoint(text, start)
		segment := text[start:end]
		if strings.TrimSpace(segment) != "" {
			out = append(out, domain.Chunk{
				SourceID: sourceID,
				Index:    len(out),
				Text:     segment,
				Start:    start,
				End:      end,
			})
		}
		if end == len(text) {
			break
		}
		start = s.nextStart(text, start, end)
	}
	return out
}

// cutPoint returns the end offset of the chunk beginning at start: the full
// remainder when it fits, otherwise the highest-priority boundary inside the
// window, otherwise a hard cut at the size limit.
func (s *Splitter) cutPoint(text string, start int) int {
	limit := start + s.ChunkSize
	if limit >= len(text) {
		return len(text)
	}
	// Keep the hard limit on a rune boundary.
	for limit > start && !utf8.RuneStart(text[limit]) {
		limit--
	}

	window := text[start:limit]
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		return start + idx + len(sep)
	}
	return limit
}

// nextStart backs up by the overlap from the previous cut, clamped so every
// iteration makes progress and stays on a rune boundary.
func (s *Splitter) nextStart(text string, prevStart, end int) int {
	next := end - s.Overlap
	if next <= prevStart {
		next = prevStart + 1
	}
	for next < len(text) && !utf8.RuneStart(text[next]) {
		next++
	}
	return next
}
