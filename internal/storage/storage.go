package storage

import (
	"context"
	"regexp"
	"strings"
)

// ObjectStore uploads finished clips and returns the public URL they
// will be served from.
type ObjectStore interface {
	Put(ctx context.Context, key, localPath string) (string, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._/-]+`)

// SanitizeKey collapses an arbitrary string into a safe object key.
func SanitizeKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = unsafeKeyChars.ReplaceAllString(key, "")
	key = strings.Trim(key, "/")
	return key
}
