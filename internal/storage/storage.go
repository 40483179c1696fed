package storage

import (
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ContentTypeJSON is set on every snapshot object.
const ContentTypeJSON = "application/json"

// ObjectKey maps a snapshot slot to its object key under prefix.
func ObjectKey(prefix, slot string) string {
	return prefix + slot + ".json"
}
