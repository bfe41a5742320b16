// Package transfer uploads local files to remote storage, selecting the
// storage provider from the destination URI scheme.
package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/3leaps/gogenie/pkg/provider"
	"github.com/3leaps/gogenie/pkg/provider/file"
	"github.com/3leaps/gogenie/pkg/provider/s3"
)

// Opener returns a provider able to write to the location named by u.
type Opener func(ctx context.Context, u *ObjectURI) (provider.ObjectPutter, error)

// S3Options configures providers opened for s3:// destinations. The bucket
// always comes from the URI.
type S3Options struct {
	Region         string
	Endpoint       string
	Profile        string
	ForcePathStyle bool
}

// Service implements the file-transfer collaborator.
//
// Providers are opened on first use per scheme and bucket and cached for the
// life of the Service. Service is safe for concurrent use.
type Service struct {
	logger  *zap.Logger
	openers map[provider.ProviderType]Opener

	mu        sync.Mutex
	providers map[string]provider.ObjectPutter
}

// Option configures a Service.
type Option func(*Service)

// WithOpener registers (or replaces) the opener for a scheme.
func WithOpener(scheme provider.ProviderType, opener Opener) Option {
	return func(s *Service) {
		s.openers[scheme] = opener
	}
}

// WithS3Options configures the default s3:// opener.
func WithS3Options(opts S3Options) Option {
	return WithOpener(provider.ProviderS3, S3Opener(opts))
}

// New returns a Service with file:// and s3:// support.
func New(logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		logger: logger,
		openers: map[provider.ProviderType]Opener{
			provider.ProviderFile: FileOpener,
			provider.ProviderS3:   S3Opener(S3Options{}),
		},
		providers: make(map[string]provider.ObjectPutter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileOpener opens the local filesystem rooted at /.
func FileOpener(ctx context.Context, u *ObjectURI) (provider.ObjectPutter, error) {
	_ = ctx
	_ = u
	return file.New(file.Config{BaseDir: string(filepath.Separator)})
}

// S3Opener returns an opener creating one S3 provider per bucket.
func S3Opener(opts S3Options) Opener {
	return func(ctx context.Context, u *ObjectURI) (provider.ObjectPutter, error) {
		return s3.New(ctx, s3.Config{
			Bucket:         u.Bucket,
			Region:         opts.Region,
			Endpoint:       opts.Endpoint,
			Profile:        opts.Profile,
			ForcePathStyle: opts.ForcePathStyle,
		})
	}
}

// PutFile uploads the file at localPath to remoteURI.
//
// When remoteURI ends in "/" the local file name is appended. An existing
// object at the destination is overwritten.
func (s *Service) PutFile(ctx context.Context, localPath, remoteURI string) error {
	u, err := ParseURI(remoteURI)
	if err != nil {
		return &TransferError{Op: "parse", LocalPath: localPath, URI: remoteURI, Err: err}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return &TransferError{Op: "open", LocalPath: localPath, URI: remoteURI, Err: err}
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return &TransferError{Op: "stat", LocalPath: localPath, URI: remoteURI, Err: err}
	}
	if st.IsDir() {
		return &TransferError{Op: "stat", LocalPath: localPath, URI: remoteURI, Err: fmt.Errorf("is a directory")}
	}

	p, err := s.providerFor(ctx, u)
	if err != nil {
		return &TransferError{Op: "open", LocalPath: localPath, URI: remoteURI, Err: err}
	}

	key := u.Resolve(filepath.Base(localPath))
	s.logger.Debug("Uploading file",
		zap.String("local_path", localPath),
		zap.String("scheme", u.Scheme.String()),
		zap.String("bucket", u.Bucket),
		zap.String("key", key),
		zap.Int64("bytes", st.Size()))

	if err := p.PutObject(ctx, key, f, st.Size()); err != nil {
		return &TransferError{Op: "put", LocalPath: localPath, URI: remoteURI, Err: err}
	}
	return nil
}

func (s *Service) providerFor(ctx context.Context, u *ObjectURI) (provider.ObjectPutter, error) {
	cacheKey := u.Scheme.String() + "://" + u.Bucket

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.providers[cacheKey]; ok {
		return p, nil
	}
	opener, ok := s.openers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	p, err := opener(ctx, u)
	if err != nil {
		return nil, err
	}
	s.providers[cacheKey] = p
	return p, nil
}

// Close releases all cached providers.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for k, p := range s.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.providers, k)
	}
	return firstErr
}
