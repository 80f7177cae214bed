package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/vaultsync/internal/logger"
)

// S3Config configures the S3 blob backend. Works with AWS S3 and
// S3-compatible stores (MinIO, R2) via Endpoint and ForcePathStyle.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	KeyPrefix       string `mapstructure:"prefix" yaml:"prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// S3Store stores blobs as S3 objects keyed
// <key_prefix>/<vault_id>/<h[0:2]>/<h[2:4]>/<h[4:]>.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates an S3 blob store. Static credentials are used when
// provided; otherwise the default AWS credential chain applies. The
// bucket must already exist.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob: s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.KeyPrefix,
	}, nil
}

// keyOf returns the object key for a blob.
func (s *S3Store) keyOf(vaultID int64, hash string) (string, error) {
	a, b, rest, err := shardHash(hash)
	if err != nil {
		return "", err
	}
	return path.Join(s.prefix, strconv.FormatInt(vaultID, 10), a, b, rest), nil
}

// vaultPrefix returns the key prefix shared by all blobs of a vault.
func (s *S3Store) vaultPrefix(vaultID int64) string {
	return path.Join(s.prefix, strconv.FormatInt(vaultID, 10)) + "/"
}

func (s *S3Store) Open(ctx context.Context, vaultID int64, hash string) (io.ReadCloser, error) {
	key, err := s.keyOf(vaultID, hash)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("blob: s3 get %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *S3Store) Create(ctx context.Context, vaultID int64, hash string) (io.WriteCloser, error) {
	key, err := s.keyOf(vaultID, hash)
	if err != nil {
		return nil, err
	}

	// Stream the upload through a pipe so callers can write blobs of
	// any size without buffering them whole.
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		// Unblock the writer side if the upload died mid-stream.
		pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

func (s *S3Store) Size(ctx context.Context, vaultID int64, hash string) (int64, error) {
	key, err := s.keyOf(vaultID, hash)
	if err != nil {
		return 0, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, ErrBlobNotFound
		}
		return 0, fmt.Errorf("blob: s3 head %s: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3Store) Remove(ctx context.Context, vaultID int64, hash string) error {
	key, err := s.keyOf(vaultID, hash)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("blob: s3 delete %s: %w", key, err)
	}
	return nil
}

// RemoveVault lists and batch-deletes every object under the vault prefix.
func (s *S3Store) RemoveVault(ctx context.Context, vaultID int64) error {
	prefix := s.vaultPrefix(vaultID)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("blob: s3 list %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("blob: s3 delete batch under %s: %w", prefix, err)
		}
		for _, failed := range out.Errors {
			logger.Warn("s3 delete failed for object",
				"key", aws.ToString(failed.Key),
				"code", aws.ToString(failed.Code))
		}
	}
	return nil
}

// s3Writer adapts the pipe feeding a background PutObject into an
// io.WriteCloser. Close waits for the upload to finish and returns its
// error.
type s3Writer struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.pw.Close()
	return <-w.done
}
