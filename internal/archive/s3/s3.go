package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/appdraft/appdraft/internal/archive"
	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
)

// Client is the subset of the S3 API the store uses.
type Client interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// NewClient creates an S3 client from the ambient AWS configuration.
func NewClient(ctx context.Context, region string) (Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("could not load AWS config: %w", err)
	}
	return awss3.NewFromConfig(cfg), nil
}

// StoreConfig is the configuration for the S3 archive store.
type StoreConfig struct {
	Client Client
	Bucket string
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "s3.Store"})
	return nil
}

// Store keeps project bundles in an S3 bucket.
type Store struct {
	cfg StoreConfig
}

// NewStore creates a new S3 archive store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{cfg: cfg}, nil
}

var _ archive.Store = &Store{}

// Ping checks the bucket is reachable with the ambient credentials.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.cfg.Client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s not reachable: %w (%s)", s.cfg.Bucket, model.ErrArchiveUnavailable, err)
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.cfg.Client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("could not put object %s: %w", key, err)
	}

	s.cfg.Logger.Debugf("Uploaded bundle %s to s3://%s", key, s.cfg.Bucket)
	return nil
}

func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.cfg.Client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("bundle %s: %w", key, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get object %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	keys := []string{}
	var token *string
	for {
		out, err := s.cfg.Client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.cfg.Bucket),
			Prefix:            aws.String(conventions.ArchiveKeyPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("could not list objects: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.cfg.Client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("could not delete object %s: %w", key, err)
	}
	return nil
}
