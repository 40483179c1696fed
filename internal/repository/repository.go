package repository

import (
	"context"
	"time"
)

// Error constants for repository layer
var (
	ErrNotFound    = RepositoryError("not found")
	ErrWriteFailed = RepositoryError("write failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// SnapshotRepository stores one serialized document per named slot.
// It replaces browser local storage: the whole patient collection lives in a
// single slot and is always read and written in full.
type SnapshotRepository interface {
	// Load returns the raw document stored in slot, or ErrNotFound when the
	// slot has never been written.
	Load(ctx context.Context, slot string) ([]byte, error)
	// Save replaces the document in slot with data in a single write.
	Save(ctx context.Context, slot string, data []byte) error
}

// Presigner is implemented by backends that can hand out a temporary download
// link for a slot (the S3 backend does).
type Presigner interface {
	PresignDownload(ctx context.Context, slot string, expires time.Duration) (string, error)
}
