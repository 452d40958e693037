package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config locates the bucket holding the document store.
type S3Config struct {
	Bucket string
	// Prefix is prepended to every document and index key.
	Prefix string
	// Region falls back to the AWS default chain when empty.
	Region string
	// Endpoint points at an S3-compatible provider such as MinIO.
	Endpoint     string
	UsePathStyle bool
}

// Validate requires a bucket.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 storage path must name a bucket")
	}
	return nil
}

// ParseS3Path splits "[s3://]bucket[/prefix]".
func ParseS3Path(p string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(p, "s3://"), "/")
	return bucket, strings.Trim(prefix, "/")
}

// S3ConfigFromPath builds an S3Config from a "bucket/prefix" path.
func S3ConfigFromPath(p, region, endpoint string, pathStyle bool) S3Config {
	bucket, prefix := ParseS3Path(p)
	return S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       region,
		Endpoint:     endpoint,
		UsePathStyle: pathStyle,
	}
}

// client builds an S3 client from the default AWS credential chain.
func (c *S3Config) client(ctx context.Context) (*s3.Client, error) {
	var load []func(*config.LoadOptions) error
	if c.Region != "" {
		load = append(load, config.WithRegion(c.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	endpoint, pathStyle := c.Endpoint, c.UsePathStyle
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = pathStyle
	}), nil
}

// newS3Factory returns a lode store factory over one S3 client.
func newS3Factory(ctx context.Context, s3cfg S3Config) (lode.StoreFactory, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := s3cfg.client(ctx)
	if err != nil {
		return nil, err
	}
	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{Bucket: s3cfg.Bucket, Prefix: s3cfg.Prefix})
	}, nil
}
