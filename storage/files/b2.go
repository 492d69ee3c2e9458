package files

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/upload"
)

// B2Store puts files in a Backblaze B2 bucket.
type B2Store struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ upload.FileStore = (*B2Store)(nil)

func NewB2Store(ctx context.Context, conf core.B2Config) (*B2Store, error) {
	client, err := b2.NewClient(ctx, conf.AccountID, conf.ApplicationKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "opening b2 bucket %s", conf.Bucket)
	}
	return &B2Store{client: client, bucket: bucket}, nil
}

func (s *B2Store) Name() string { return ProviderB2 }

func (s *B2Store) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	w := s.bucket.Object(key).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: contentType})

	if _, err := io.Copy(w, io.LimitReader(r, size)); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "closing writer")
	}
	return fmt.Sprintf("%s/file/%s/%s", s.bucket.BaseURL(), s.bucket.Name(), key), nil
}
