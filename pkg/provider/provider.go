// Package provider defines abstractions for the object stores job archives are
// uploaded to.
//
// Providers implement a minimal write-oriented surface. Authentication uses SDK
// default credential chains - providers should not implement custom auth
// logic.
package provider

import (
	"context"
	"io"
)

// ObjectPutter creates or overwrites objects.
//
// Implementations should:
//   - Overwrite an existing object at the same key
//   - Never expose a partially written object under key
//   - Be safe for concurrent use
type ObjectPutter interface {
	// PutObject stores body under key. contentLength is the exact body size.
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error

	// Close releases any resources held by the provider.
	Close() error
}

// ProviderType identifies a storage provider.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"

	// ProviderFile represents a local (or mounted) filesystem.
	ProviderFile ProviderType = "file"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
