package source

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

var loadDefaultAWSConfig = config.LoadDefaultConfig

// s3API is the subset of the SDK client used here; fakes implement it in
// tests.
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader reads source objects with the session's ephemeral credentials.
type S3Reader struct {
	client s3API
}

// NewS3Reader builds a reader from session credentials. BaseEndpoint is
// optional and used for S3-compatible backends (e.g. MinIO).
func NewS3Reader(ctx context.Context, creds *models.Credentials, baseEndpoint string) (*S3Reader, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(creds.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: aws config: %w", common.ErrSourceUnreadable, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if baseEndpoint != "" {
			o.BaseEndpoint = aws.String(baseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Reader{client: client}, nil
}

func (r *S3Reader) Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: head %s/%s: %w", common.ErrSourceUnreadable, bucket, key, err)
	}
	return &ObjectInfo{
		Size: aws.ToInt64(out.ContentLength),
		ETag: aws.ToString(out.ETag),
	}, nil
}

func (r *S3Reader) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %w", common.ErrSourceUnreadable, bucket, key, err)
	}
	return out.Body, nil
}

func (r *S3Reader) OpenRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error) {
	// HTTP range headers are inclusive on both ends.
	rng := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s %s: %w", common.ErrSourceUnreadable, bucket, key, rng, err)
	}
	return out.Body, nil
}
