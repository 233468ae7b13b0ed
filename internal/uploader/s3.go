package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader streams files into an S3 bucket using the transfer manager, so
// large segments get multipart handling for free.
type S3Uploader struct {
	dest     Destination
	uploader *manager.Uploader
}

// NewS3 builds an S3 uploader for dest. Static credentials from the
// destination take precedence; otherwise the default chain (env, shared
// config, instance role) applies.
func NewS3(ctx context.Context, dest Destination) (*S3Uploader, error) {
	if dest.Bucket == "" || dest.Region == "" {
		return nil, errors.New("s3 uploads require bucket and region")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(dest.Region),
	}
	if dest.AccessKeyID != "" && dest.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(dest.AccessKeyID, dest.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &S3Uploader{
		dest:     dest,
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
	}, nil
}

// Upload sends one file to the bucket under the destination's key layout.
func (u *S3Uploader) Upload(ctx context.Context, localPath string, kind Kind) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	key := u.dest.ObjectKey(kind, localPath)
	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.dest.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(localPath)),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s/%s: %w", localPath, u.dest.Bucket, key, err)
	}
	log.Debug("uploaded segment", "provider", "s3", "key", key)
	return nil
}
