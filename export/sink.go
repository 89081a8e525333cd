// Package export writes gopql results to files and object stores.
//
// Each ResultSet handed out by an iterator becomes one object named
// <prefix>_<n>.<ext>, so large results can be saved page by page without
// holding them in memory.
package export

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// Sink stores named objects.
type Sink interface {
	// Put stores body under name. Implementations may read body only once.
	Put(ctx context.Context, name string, body io.Reader) error
	// Location returns a URL-like description of where name ends up.
	Location(name string) string
}

// UploadError is returned when a sink rejects an object.
type UploadError struct {
	Location string
	// Code is the provider error code, e.g. NoSuchBucket or ContainerNotFound.
	Code       string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	msg := "upload to " + e.Location + " failed"
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// ParseDestination returns the sink for a destination URL:
//
//	file:///path/dir or a plain path
//	s3://bucket/prefix
//	azblob://account/container/prefix
//	gs://bucket/prefix
//
// Cloud credentials come from the provider's usual environment variables.
func ParseDestination(ctx context.Context, dest string) (Sink, error) {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain paths, including windows drive letters
		return NewLocalSink(dest), nil
	}
	prefix := strings.Trim(u.Path, "/")
	switch strings.ToLower(u.Scheme) {
	case "file":
		return NewLocalSink(u.Path), nil
	case "s3":
		return NewS3Sink(S3Config{
			Bucket:          u.Host,
			Prefix:          prefix,
			Region:          os.Getenv("AWS_REGION"),
			Endpoint:        os.Getenv("AWS_ENDPOINT_URL"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			UsePathStyle:    u.Query().Get("path_style") == "true",
		})
	case "azblob", "az":
		container, blobPrefix, _ := strings.Cut(prefix, "/")
		if container == "" {
			return nil, fmt.Errorf("destination %v names no container", dest)
		}
		return NewAzureSink(AzureConfig{
			AccountName:      u.Host,
			Container:        container,
			Prefix:           blobPrefix,
			AccountKey:       os.Getenv("AZURE_STORAGE_KEY"),
			SASToken:         os.Getenv("AZURE_STORAGE_SAS_TOKEN"),
			ConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		})
	case "gs", "gcs":
		return NewGCSSink(ctx, GCSConfig{
			Bucket:          u.Host,
			Prefix:          prefix,
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			Endpoint:        os.Getenv("STORAGE_EMULATOR_HOST"),
		})
	default:
		return nil, fmt.Errorf("unsupported destination scheme %q", u.Scheme)
	}
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimRight(prefix, "/") + "/" + name
}
