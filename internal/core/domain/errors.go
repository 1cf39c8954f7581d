package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the file or URL behind a source is unreachable.
	ErrNotFound = errors.New("source not found")
	// ErrDecode: no supported text encoding could read the file.
	ErrDecode = errors.New("undecodable source")
	// ErrFetch: network or HTTP failure during web extraction.
	ErrFetch = errors.New("fetch failed")
	// ErrEmbeddingProvider: the embedding provider rejected or was unreachable.
	ErrEmbeddingProvider = errors.New("embedding provider failure")
	// ErrVectorStore: a vector store call failed.
	ErrVectorStore = errors.New("vector store failure")
	// ErrConfiguration: missing credentials, absent index or dimension
	// mismatch. Fatal at startup, never per request.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnsafeQuery: the tool safety validator rejected a structured query.
	ErrUnsafeQuery = errors.New("unsafe query rejected")
	// ErrTemporary marks failures worth retrying.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
