// Package publish uploads finished snapshot files to object storage.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dd0wney/microbekg/pkg/config"
	"github.com/dd0wney/microbekg/pkg/logging"
)

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads snapshot files under Prefix/v{version}/.
type S3Publisher struct {
	Client ObjectPutter
	Bucket string
	Prefix string
	Logger logging.Logger
}

// NewS3Publisher builds a publisher from cfg. Static credentials are used
// when both keys are set; otherwise the default AWS chain applies. A custom
// Endpoint switches to path-style addressing for S3-compatible stores.
func NewS3Publisher(ctx context.Context, cfg config.S3Config, logger logging.Logger) (*S3Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("publish: no S3 bucket configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("publish: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &S3Publisher{
		Client: client,
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
		Logger: logger.With(logging.Component("publish")),
	}, nil
}

// Key returns the object key of file for a snapshot version.
func (p *S3Publisher) Key(version int, file string) string {
	return path.Join(strings.Trim(p.Prefix, "/"), fmt.Sprintf("v%d", version), filepath.Base(file))
}

// Publish uploads every path. It stops at the first failure; objects
// already uploaded are left in place.
func (p *S3Publisher) Publish(ctx context.Context, version int, paths ...string) ([]string, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	keys := make([]string, 0, len(paths))
	for _, local := range paths {
		key := p.Key(version, local)
		if err := p.upload(ctx, local, key); err != nil {
			return keys, err
		}
		logger.Info("published snapshot file",
			logging.Path(local),
			logging.String("bucket", p.Bucket),
			logging.String("key", key))
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *S3Publisher) upload(ctx context.Context, local, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("publish: open %s: %w", local, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("publish: stat %s: %w", local, err)
	}

	contentType := "text/tab-separated-values"
	if strings.HasSuffix(local, ".sz") {
		contentType = "application/x-snappy-framed"
	}
	_, err = p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("publish: put s3://%s/%s: %w", p.Bucket, key, err)
	}
	return nil
}
