// Package files stores uploaded files on third party object storage.
package files

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/upload"
)

// provider names
const (
	ProviderB2 = "b2"
	ProviderS3 = "s3"
)

// New returns the FileStore selected by the configuration.
// It returns nil and no error when no provider is configured.
func New(ctx context.Context, conf *core.Config) (upload.FileStore, error) {
	switch conf.Storage.Provider {
	case "":
		return nil, nil
	case ProviderB2:
		b2c := conf.Storage.B2
		if b2c.AccountID == "" || b2c.ApplicationKey == "" || b2c.Bucket == "" {
			return nil, nil
		}
		return NewB2Store(ctx, b2c)
	case ProviderS3:
		s3c := conf.Storage.S3
		if s3c.Endpoint == "" || s3c.AccessKey == "" || s3c.SecretKey == "" || s3c.Bucket == "" {
			return nil, nil
		}
		return NewS3Store(s3c)
	}
	return nil, errors.Errorf("unknown storage provider %q", conf.Storage.Provider)
}
