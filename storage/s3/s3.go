// Package s3 keeps blobs in an S3 bucket and signs GET URLs with the
// presign client. Importing it registers the "s3" provider.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/meetingflow/logger"
	"github.com/kbukum/meetingflow/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderS3, func(ctx context.Context, cfg storage.Config, log *logger.Logger) (storage.BlobStore, error) {
		b, err := New(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		log.Info("s3 bucket configured", logger.Fields("bucket", cfg.S3.Bucket, "region", cfg.S3.Region, "prefix", cfg.S3.Prefix))
		return b, nil
	})
}

type Bucket struct {
	api     *awss3.Client
	presign *awss3.PresignClient
	name    string
	prefix  string
}

var _ storage.BlobStore = (*Bucket)(nil)

func New(ctx context.Context, cfg storage.S3Config) (*Bucket, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: aws config: %w", err)
	}

	api := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &Bucket{api: api, presign: awss3.NewPresignClient(api), name: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *Bucket) key(p string) *string {
	if b.prefix == "" {
		return aws.String(p)
	}
	return aws.String(path.Join(b.prefix, p))
}

// wrap maps missing-object errors onto storage.ErrNotFound.
func wrap(op, p string, err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, p)
	}
	return fmt.Errorf("storage: s3 %s %s: %w", op, p, err)
}

// Upload sets Content-Type from the path extension when known.
func (b *Bucket) Upload(ctx context.Context, p string, r io.Reader) error {
	in := &awss3.PutObjectInput{Bucket: aws.String(b.name), Key: b.key(p), Body: r}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := b.api.PutObject(ctx, in); err != nil {
		return wrap("put", p, err)
	}
	return nil
}

func (b *Bucket) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := b.api.GetObject(ctx, &awss3.GetObjectInput{Bucket: aws.String(b.name), Key: b.key(p)})
	if err != nil {
		return nil, wrap("get", p, err)
	}
	return out.Body, nil
}

func (b *Bucket) Delete(ctx context.Context, p string) error {
	if _, err := b.api.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: aws.String(b.name), Key: b.key(p)}); err != nil {
		return wrap("delete", p, err)
	}
	return nil
}

func (b *Bucket) Exists(ctx context.Context, p string) (bool, error) {
	_, err := b.api.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: aws.String(b.name), Key: b.key(p)})
	if err == nil {
		return true, nil
	}
	if err = wrap("head", p, err); errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// SignedURL presigns a GET without checking that the object exists.
func (b *Bucket) SignedURL(ctx context.Context, p string, expiry time.Duration) (string, error) {
	req, err := b.presign.PresignGetObject(ctx,
		&awss3.GetObjectInput{Bucket: aws.String(b.name), Key: b.key(p)},
		awss3.WithPresignExpires(expiry))
	if err != nil {
		return "", wrap("presign", p, err)
	}
	return req.URL, nil
}
