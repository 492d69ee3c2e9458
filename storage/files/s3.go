package files

import (
	"context"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/upload"
)

// S3Store puts files in a bucket of any S3 compatible service (AWS, MinIO, R2...).
type S3Store struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

var _ upload.FileStore = (*S3Store)(nil)

func NewS3Store(conf core.S3Config) (*S3Store, error) {
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating s3 client")
	}
	return &S3Store{client: client, bucket: conf.Bucket, baseURL: publicBaseURL(conf)}, nil
}

// publicBaseURL is where objects are served from: the configured base or the endpoint itself.
func publicBaseURL(conf core.S3Config) string {
	if conf.PublicBaseURL != "" {
		return conf.PublicBaseURL
	}
	scheme := "http"
	if conf.UseSSL {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: conf.Endpoint}).String()
}

func (s *S3Store) Name() string { return ProviderS3 }

func (s *S3Store) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrap(err, "putting object")
	}
	return s.baseURL + "/" + s.bucket + "/" + key, nil
}
