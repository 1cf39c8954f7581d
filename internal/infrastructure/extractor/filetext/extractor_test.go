package filetext

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"testing"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

type storageFake struct {
	files map[string][]byte
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.files[key]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func newSource(origin string) *domain.Source {
	return &domain.Source{ID: "src-1", Type: domain.SourceFileText, Origin: origin}
}

func TestExtractUTF8(t *testing.T) {
	storage := &storageFake{files: map[string][]byte{
		"doc.txt": []byte("  hello world — utf8 text\n"),
	}}
	e := New(storage)

	text, err := e.Extract(context.Background(), newSource("doc.txt"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello world — utf8 text" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractLatin1Fallback(t *testing.T) {
	// 0xE9 is 'é' in Latin-1 and invalid as a standalone UTF-8 byte.
	storage := &storageFake{files: map[string][]byte{
		"doc.txt": {'c', 'a', 'f', 0xE9},
	}}
	e := New(storage)

	text, err := e.Extract(context.Background(), newSource("doc.txt"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "café" {
		t.Fatalf("expected latin-1 fallback to yield %q, got %q", "café", text)
	}
}

func TestExtractMissingFile(t *testing.T) {
	e := New(&storageFake{files: map[string][]byte{}})

	_, err := e.Extract(context.Background(), newSource("absent.txt"))
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
