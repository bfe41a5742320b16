package transfer

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/3leaps/gogenie/pkg/provider"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedScheme indicates the URI scheme has no registered provider.
	ErrUnsupportedScheme = errors.New("unsupported scheme")

	// ErrMissingBucket indicates an s3 URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

// ObjectURI is a parsed archive destination.
//
// Example URIs:
//   - s3://bucket/genie/jobs/job-1.tar.gz
//   - file:///mnt/archive/job-1.tar.gz
type ObjectURI struct {
	// Scheme selects the provider ("s3" or "file").
	Scheme provider.ProviderType

	// Bucket is the bucket name. Empty for file URIs.
	Bucket string

	// Key is the object key (s3) or absolute path without the leading slash (file).
	Key string
}

// String returns the URI in canonical form.
func (u *ObjectURI) String() string {
	if u.Scheme == provider.ProviderFile {
		return "file:///" + u.Key
	}
	return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, u.Key)
}

// IsPrefix returns true if the URI names a directory-like location (ends with
// / or has no key). Uploads to a prefix append the local file name.
func (u *ObjectURI) IsPrefix() bool {
	return u.Key == "" || strings.HasSuffix(u.Key, "/")
}

// Resolve returns the object key for uploading a file named base.
func (u *ObjectURI) Resolve(base string) string {
	if u.IsPrefix() {
		return path.Join(u.Key, base)
	}
	return u.Key
}

// ParseURI parses an archive destination URI.
//
// Supported formats:
//   - s3://bucket
//   - s3://bucket/key
//   - s3://bucket/prefix/
//   - file:///absolute/path
//
// Returns an error if the URI is malformed or uses an unsupported scheme.
func ParseURI(uri string) (*ObjectURI, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3:// or file://)", ErrInvalidURI)
	}

	scheme := strings.ToLower(uri[:schemeEnd])
	remainder := uri[schemeEnd+3:]

	switch provider.ProviderType(scheme) {
	case provider.ProviderS3:
		return parseS3(uri, remainder)
	case provider.ProviderFile:
		return parseFile(uri, remainder)
	default:
		return nil, fmt.Errorf("%w: %s (supported: s3, file)", ErrUnsupportedScheme, scheme)
	}
}

func parseS3(uri, remainder string) (*ObjectURI, error) {
	if remainder == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}

	var bucket, key string
	slashIdx := strings.Index(remainder, "/")
	if slashIdx == -1 {
		bucket = remainder
	} else {
		bucket = remainder[:slashIdx]
		key = remainder[slashIdx+1:]
	}

	if bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}

	// Basic validation - S3 bucket names can't contain most special chars
	if _, err := url.Parse("s3://" + bucket + "/"); err != nil {
		return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
	}

	return &ObjectURI{Scheme: provider.ProviderS3, Bucket: bucket, Key: key}, nil
}

func parseFile(uri, remainder string) (*ObjectURI, error) {
	// file:///abs/path has an empty authority; file://host/path is not supported.
	if !strings.HasPrefix(remainder, "/") {
		return nil, fmt.Errorf("%w: file URI must be absolute (file:///path) in %s", ErrInvalidURI, uri)
	}
	key := strings.TrimPrefix(remainder, "/")
	if key == "" {
		return nil, fmt.Errorf("%w: file URI has no path in %s", ErrInvalidURI, uri)
	}
	return &ObjectURI{Scheme: provider.ProviderFile, Key: key}, nil
}
