package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
	"github.com/kirillkom/chatbot-rag/internal/core/ports"
)

// RegisterSourceUseCase is the ingestion entry point consumed by the
// surrounding CRUD layer: it persists the source, stores an uploaded body if
// one is provided, and hands the id to the ingestion worker via the queue.
type RegisterSourceUseCase struct {
	repo    ports.SourceRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewRegisterSourceUseCase(
	repo ports.SourceRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *RegisterSourceUseCase {
	return &RegisterSourceUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *RegisterSourceUseCase) Register(ctx context.Context, reg ports.SourceRegistration) (*domain.Source, error) {
	if !reg.Type.Valid() {
		return nil, domain.WrapError(domain.ErrConfiguration, "register source",
			fmt.Errorf("unknown source type %q", reg.Type))
	}

	// Re-ingestion reuses the caller-supplied id so chunk ids stay stable
	// and uploads overwrite the prior vectors.
	id := strings.TrimSpace(reg.SourceID)
	if id == "" {
		id = uuid.NewString()
	}

	origin := reg.Origin
	if reg.Body != nil {
		key := fmt.Sprintf("%s_%s", id, sanitizeName(reg.Origin))
		if err := uc.storage.Save(ctx, key, reg.Body); err != nil {
			return nil, fmt.Errorf("save source body: %w", err)
		}
		origin = key
	}

	now := time.Now().UTC()
	src := &domain.Source{
		ID:        id,
		Type:      reg.Type,
		Origin:    origin,
		Namespace: reg.Namespace,
		Extra:     reg.Extra,
		Status:    domain.SourcePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("create source record: %w", err)
	}

	if err := uc.queue.PublishSourceRegistered(ctx, src.ID); err != nil {
		return nil, fmt.Errorf("publish source registered: %w", err)
	}
	return src, nil
}

func sanitizeName(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "source.bin"
	}
	return base
}
