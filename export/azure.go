package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureConfig configures an AzureSink. ConnectionString wins over
// AccountKey, which wins over SASToken. With none of them the container
// must allow anonymous writes.
type AzureConfig struct {
	AccountName string
	// ServiceURL defaults to https://<AccountName>.blob.core.windows.net/
	ServiceURL       string
	Container        string
	Prefix           string
	AccountKey       string
	SASToken         string
	ConnectionString string
}

type azureBlobAPI interface {
	UploadStream(ctx context.Context, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

// AzureSink uploads objects as block blobs.
type AzureSink struct {
	account   string
	container string
	prefix    string
	blob      func(name string) azureBlobAPI
}

// NewAzureSink creates the blob service client for cfg.
func NewAzureSink(cfg AzureConfig) (*AzureSink, error) {
	if cfg.Container == "" {
		return nil, errors.New("azure destination names no container")
	}
	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		if cfg.AccountName == "" && cfg.ConnectionString == "" {
			return nil, errors.New("azure destination names no storage account")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}
	var client *azblob.Client
	var err error
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountKey != "":
		var cred *azblob.SharedKeyCredential
		if cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey); err == nil {
			client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		}
	default:
		if cfg.SASToken != "" {
			serviceURL = strings.TrimRight(serviceURL, "?") + "?" + strings.TrimPrefix(cfg.SASToken, "?")
		}
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}
	containerClient := client.ServiceClient().NewContainerClient(cfg.Container)
	return &AzureSink{
		account:   cfg.AccountName,
		container: cfg.Container,
		prefix:    cfg.Prefix,
		blob: func(name string) azureBlobAPI {
			return containerClient.NewBlockBlobClient(name)
		},
	}, nil
}

// Put uploads body as prefix/name.
func (s *AzureSink) Put(ctx context.Context, name string, body io.Reader) error {
	ct := contentType(name)
	_, err := s.blob(joinKey(s.prefix, name)).UploadStream(ctx, body, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err == nil {
		return nil
	}
	ue := &UploadError{Location: s.Location(name), Err: err}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		ue.Code = re.ErrorCode
		ue.StatusCode = re.StatusCode
	}
	return ue
}

// Location returns the azblob:// URL for name.
func (s *AzureSink) Location(name string) string {
	return "azblob://" + s.account + "/" + s.container + "/" + joinKey(s.prefix, name)
}
