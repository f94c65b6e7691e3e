package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUploadFailed    = errors.New("media upload failed")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// File is one attachment handed to the uploader.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Result is the durable location of an uploaded file.
type Result struct {
	URL string `json:"url"`
}

// Uploader pushes an attachment to the blob store and returns its URL.
// The store itself (CDN, bucket layout, transforms) is not this
// process's concern.
type Uploader interface {
	Upload(ctx context.Context, file File) (*Result, error)
}

// ContentTypeOf maps a MIME type to the message content types the chat
// pipeline accepts. Anything that is not an image or a video is rejected.
func ContentTypeOf(mimeType string) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "image"):
		return "image", nil
	case strings.HasPrefix(mimeType, "video"):
		return "video", nil
	default:
		return "", ErrUnsupportedType
	}
}

type httpUploader struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPUploader uploads via multipart POST to the configured media
// service endpoint. The service answers {"url": "..."}.
func NewHTTPUploader(endpoint string, logger *zap.Logger) Uploader {
	return &httpUploader{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (u *httpUploader) Upload(ctx context.Context, file File) (*Result, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", file.Name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		u.logger.Error("media upload request failed", zap.String("file", file.Name), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.logger.Error("media upload rejected",
			zap.String("file", file.Name),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUploadFailed, err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("%w: empty url in response", ErrUploadFailed)
	}

	u.logger.Debug("media uploaded", zap.String("file", file.Name), zap.String("url", result.URL))
	return &result, nil
}
