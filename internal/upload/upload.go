// Package upload sends a finished clip to the upload endpoint.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alkime/micclip/internal/recorder"
	"github.com/go-resty/resty/v2"
)

const (
	// FieldName and FileName describe the multipart part carrying the clip.
	FieldName = "audio"
	FileName  = "recording.wav"
)

var (
	// ErrNoData is returned when there is no clip to upload.
	ErrNoData = errors.New("no recording to upload")
	// ErrUploadFailed matches every *UploadError.
	ErrUploadFailed = errors.New("upload failed")
)

// UploadError carries the server status and body, or the transport error text
// when Status is zero.
type UploadError struct {
	Status  int
	Message string
}

func (e *UploadError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upload failed: %s", e.Message)
	}

	return fmt.Sprintf("upload failed with status %d: %s", e.Status, e.Message)
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}

// Dispatcher posts clips to a single URL. It does not retry.
type Dispatcher struct {
	url    string
	client *resty.Client
}

// New returns a Dispatcher for url.
func New(url string, timeout time.Duration) *Dispatcher {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Dispatcher{url: url, client: client}
}

// URL returns the endpoint clips are posted to.
func (d *Dispatcher) URL() string {
	return d.url
}

// Upload posts clip as a multipart form. An empty clip is ErrNoData and
// makes no request.
func (d *Dispatcher) Upload(ctx context.Context, clip recorder.Clip) error {
	if clip.Empty() {
		return ErrNoData
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetFileReader(FieldName, FileName, bytes.NewReader(clip.Blob)).
		Post(d.url)
	if err != nil {
		return &UploadError{Message: err.Error()}
	}

	if resp.StatusCode() != http.StatusOK {
		return &UploadError{
			Status:  resp.StatusCode(),
			Message: strings.TrimSpace(resp.String()),
		}
	}

	slog.Info("clip uploaded", "url", d.url, "bytes", len(clip.Blob))

	return nil
}
