package snapstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hazyhaar/entitlemate/horosafe"
	"github.com/hazyhaar/entitlemate/snapshot"
)

// maxObjectBytes bounds a snapshot read back from the bucket. Pretty-printing
// makes the stored form larger than the request body that produced it.
const maxObjectBytes = 256 << 20

// objectAPI is the subset of *s3.Client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the snapshot as a single object.
type S3Store struct {
	client objectAPI
	bucket string
	key    string
	logger *slog.Logger
}

// OpenS3 loads the default AWS credential chain and builds the client.
// A custom endpoint switches to path-style addressing for MinIO/LocalStack.
func OpenS3(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("snapstore: s3: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(client, cfg.Bucket, cfg.Key, logger), nil
}

func newS3(client objectAPI, bucket, key string, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{client: client, bucket: bucket, key: key, logger: logger}
}

func (s *S3Store) Load(ctx context.Context) (snapshot.Snapshot, error) {
	return loadRaw(ctx, s.Raw)
}

func (s *S3Store) Raw(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("snapstore: s3 get %s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := horosafe.LimitedReadAll(out.Body, maxObjectBytes)
	if err != nil {
		return nil, fmt.Errorf("snapstore: s3 read %s/%s: %w", s.bucket, s.key, err)
	}
	return data, nil
}

func (s *S3Store) Save(ctx context.Context, snap snapshot.Snapshot) error {
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("snapstore: s3 put %s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }
