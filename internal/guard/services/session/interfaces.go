package session

import (
	"context"

	"github.com/haukened/hostguard/internal/guard/domain"
)

// FileSystem is the boundary to the live override file.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

// Flusher invalidates the OS resolver cache so override changes take effect.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Journal persists the original snapshot outside process lifetime.
type Journal interface {
	Record(path string, content []byte) (domain.Snapshot, error)
	SetActive(path string, active bool) error
	Pending(path string) (domain.Snapshot, bool, error)
}
