package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "go-menu-analyzer/internal/errors"
)

// azurePhotoFetcher retrieves menu photos stored as Azure blobs. The blob
// URL form is https://<account>.blob.core.windows.net/<container>?blob=<name>.
type azurePhotoFetcher struct {
	client *azblob.Client
}

// NewAzurePhotoFetcher creates a blob-backed photo fetcher.
func NewAzurePhotoFetcher(accountName, accountKey string) (PhotoFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid blob storage credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to create blob client", err)
	}

	return &azurePhotoFetcher{client: client}, nil
}

func (s *azurePhotoFetcher) FetchPhoto(ctx context.Context, photoURL string) ([]byte, error) {
	parsed, err := url.Parse(photoURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid blob URL", err)
	}
	if len(parsed.Path) < 2 {
		return nil, apperrors.NewValidationError("blob URL missing container", nil)
	}

	containerName := parsed.Path[1:]
	blobName := parsed.Query().Get("blob")
	if blobName == "" {
		return nil, apperrors.NewValidationError("blob URL missing blob name", nil)
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	defer downloadResponse.Body.Close()

	body, err := io.ReadAll(io.LimitReader(downloadResponse.Body, maxPhotoSize+1))
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read blob body", err)
	}
	if len(body) > maxPhotoSize {
		return nil, apperrors.NewValidationError("photo exceeds size limit", nil)
	}
	return body, nil
}
