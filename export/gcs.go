package export

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSConfig configures a GCSSink. Without a credentials file the
// application default credentials are used, unless Anonymous is set.
type GCSConfig struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	Endpoint        string
	Anonymous       bool
}

type gcsWriterFactory func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// GCSSink uploads objects to a Cloud Storage bucket.
type GCSSink struct {
	bucket    string
	prefix    string
	newWriter gcsWriterFactory
}

// NewGCSSink creates the storage client for cfg.
func NewGCSSink(ctx context.Context, cfg GCSConfig) (*GCSSink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs destination names no bucket")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &GCSSink{
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		newWriter: func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
			w := client.Bucket(bucket).Object(object).NewWriter(ctx)
			w.ContentType = contentType
			return w
		},
	}, nil
}

// Put uploads body as prefix/name. The object only becomes visible once
// the writer is closed without error.
func (s *GCSSink) Put(ctx context.Context, name string, body io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.newWriter(ctx, s.bucket, joinKey(s.prefix, name), contentType(name))
	_, err := io.Copy(w, body)
	if err != nil {
		// abort the upload instead of committing a partial object
		cancel()
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		return nil
	}
	ue := &UploadError{Location: s.Location(name), Err: err}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		ue.StatusCode = ge.Code
		if len(ge.Errors) > 0 {
			ue.Code = ge.Errors[0].Reason
		}
	}
	return ue
}

// Location returns the gs:// URL for name.
func (s *GCSSink) Location(name string) string {
	return "gs://" + s.bucket + "/" + joinKey(s.prefix, name)
}
