package transfer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/gogenie/pkg/provider"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantScheme provider.ProviderType
		wantBucket string
		wantKey    string
		wantPrefix bool
		wantErr    error
	}{
		{name: "s3 bucket only", uri: "s3://bucket", wantScheme: provider.ProviderS3, wantBucket: "bucket", wantPrefix: true},
		{name: "s3 key", uri: "s3://bucket/genie/job-1.tar.gz", wantScheme: provider.ProviderS3, wantBucket: "bucket", wantKey: "genie/job-1.tar.gz"},
		{name: "s3 prefix", uri: "s3://bucket/genie/", wantScheme: provider.ProviderS3, wantBucket: "bucket", wantKey: "genie/", wantPrefix: true},
		{name: "uppercase scheme", uri: "S3://bucket/key", wantScheme: provider.ProviderS3, wantBucket: "bucket", wantKey: "key"},
		{name: "file path", uri: "file:///mnt/archive/job-1.tar.gz", wantScheme: provider.ProviderFile, wantKey: "mnt/archive/job-1.tar.gz"},
		{name: "empty", uri: "", wantErr: ErrInvalidURI},
		{name: "blank", uri: "   ", wantErr: ErrInvalidURI},
		{name: "no scheme", uri: "bucket/key", wantErr: ErrInvalidURI},
		{name: "unsupported", uri: "gs://bucket/key", wantErr: ErrUnsupportedScheme},
		{name: "s3 no bucket", uri: "s3://", wantErr: ErrMissingBucket},
		{name: "s3 empty bucket", uri: "s3:///key", wantErr: ErrMissingBucket},
		{name: "file relative", uri: "file://relative/path", wantErr: ErrInvalidURI},
		{name: "file root only", uri: "file:///", wantErr: ErrInvalidURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseURI(tt.uri)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, u.Scheme)
			assert.Equal(t, tt.wantBucket, u.Bucket)
			assert.Equal(t, tt.wantKey, u.Key)
			assert.Equal(t, tt.wantPrefix, u.IsPrefix())
		})
	}
}

func TestObjectURI_StringAndResolve(t *testing.T) {
	u, err := ParseURI("s3://bucket/genie/")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/genie/", u.String())
	assert.Equal(t, "genie/job-1.tar.gz", u.Resolve("job-1.tar.gz"))

	u, err = ParseURI("s3://bucket/exact.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "exact.tar.gz", u.Resolve("job-1.tar.gz"))

	u, err = ParseURI("file:///mnt/a.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "file:///mnt/a.tar.gz", u.String())
}
