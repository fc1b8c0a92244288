package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is the remote side of the bundle loader.
type ObjectStore interface {
	// List returns every key under prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Download copies an object into a local file, creating parent dirs.
	Download(ctx context.Context, bucket, key, dst string) error

	// Upload copies a local file to bucket/key.
	Upload(ctx context.Context, src, bucket, key string) error
}

// S3Store implements ObjectStore on aws-sdk-go-v2.
type S3Store struct {
	client *s3.Client
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store loads the default AWS credential chain for region. A non-empty
// endpoint targets an S3-compatible server with path-style addressing.
func NewS3Store(ctx context.Context, region, endpoint string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client}, nil
}

// List returns every key under prefix across all result pages.
func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Download copies bucket/key into dst.
func (s *S3Store) Download(ctx context.Context, bucket, key, dst string) (err error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Upload copies src to bucket/key and confirms the object exists.
func (s *S3Store) Upload(ctx context.Context, src, bucket, key string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("verify s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// UploadBundle copies the required files of the bundle in dir to
// bucket/<dir name>/<file>.
func UploadBundle(ctx context.Context, store ObjectStore, bucket, dir string) error {
	if store == nil || bucket == "" {
		return errors.New("upload bundle: no object store configured")
	}
	if err := Validate(dir); err != nil {
		return err
	}
	prefix := filepath.Base(dir)
	for _, name := range RequiredFiles {
		if err := store.Upload(ctx, filepath.Join(dir, name), bucket, path.Join(prefix, name)); err != nil {
			return err
		}
	}
	return nil
}
