package filetext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
)

// encodings tried in order; the first one that decodes cleanly wins.
var encodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"latin-1", charmap.ISO8859_1},
	{"windows-1252", charmap.Windows1252},
}

type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, src *domain.Source) (string, error) {
	reader, err := e.storage.Open(ctx, src.Origin)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.WrapError(domain.ErrNotFound, "open text source", err)
		}
		return "", fmt.Errorf("open text source: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read text source: %w", err)
	}

	text, err := decode(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrDecode, "decode text source", err)
	}
	return strings.TrimSpace(text), nil
}

func decode(raw []byte) (string, error) {
	for _, candidate := range encodings {
		if candidate.enc == unicode.UTF8 {
			if utf8.Valid(raw) {
				return string(raw), nil
			}
			continue
		}
		decoded, err := candidate.enc.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		return string(decoded), nil
	}
	return "", errors.New("no supported encoding decoded the file")
}
