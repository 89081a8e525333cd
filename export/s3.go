package export

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const defaultS3Region = "us-east-1"

// S3Config configures an S3Sink. Without an access key requests are sent
// unsigned.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UsePathStyle    bool
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink uploads objects to a bucket with the S3 transfer manager.
type S3Sink struct {
	bucket   string
	prefix   string
	uploader s3Uploader
}

// NewS3Sink creates the S3 client for cfg.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 destination names no bucket")
	}
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if opts.Region == "" {
		opts.Region = defaultS3Region
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken))
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	client := s3.New(opts)
	return &S3Sink{bucket: cfg.Bucket, prefix: cfg.Prefix, uploader: manager.NewUploader(client)}, nil
}

// Put uploads body as prefix/name.
func (s *S3Sink) Put(ctx context.Context, name string, body io.Reader) error {
	key := joinKey(s.prefix, name)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(name)),
	})
	if err == nil {
		return nil
	}
	ue := &UploadError{Location: s.Location(name), Err: err}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		ue.Code = ae.ErrorCode()
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		ue.StatusCode = re.HTTPStatusCode()
	}
	return ue
}

// Location returns the s3:// URL for name.
func (s *S3Sink) Location(name string) string {
	return "s3://" + s.bucket + "/" + joinKey(s.prefix, name)
}
