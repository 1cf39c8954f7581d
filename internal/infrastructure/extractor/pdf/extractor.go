package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
)

// Extractor reads binary documents page by page. Pages that fail to parse
// are skipped: partial extraction is acceptable, and a document where every
// page fails yields empty text, which the pipeline reports as a warning.
type Extractor struct {
	storage ports.ObjectStorage
	log     *slog.Logger
}

func New(storage ports.ObjectStorage, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{storage: storage, log: log}
}

func (e *Extractor) Extract(ctx context.Context, src *domain.Source) (string, error) {
	reader, err := e.storage.Open(ctx, src.Origin)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.WrapError(domain.ErrNotFound, "open pdf source", err)
		}
		return "", fmt.Errorf("open pdf source: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read pdf source: %w", err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrDecode, "parse pdf", err)
	}

	var out strings.Builder
	for pageNum := 1; pageNum <= doc.NumPage(); pageNum++ {
		text, err := extractPage(doc, pageNum)
		if err != nil {
			e.log.Warn("pdf page extraction failed",
				"source_id", src.ID, "page", pageNum, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
	}
	return strings.TrimSpace(out.String()), nil
}

func extractPage(doc *pdf.Reader, pageNum int) (text string, err error) {
	// The parser panics on some malformed page trees.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parser panic: %v", r)
		}
	}()

	page := doc.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
