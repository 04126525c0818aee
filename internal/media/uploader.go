// Package media fetches image bytes from their source locators and uploads
// them as remote blobs.
package media

import (
	"bytes"
	"context"
	"image"
	"io"
	"net/http"
	"time"

	// Registered for best-effort dimension probing of fetched bytes.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/atproto"
	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/monitoring"
)

// maxBlobBytes caps how much we will fetch for a single media item. The
// remote service rejects oversized blobs anyway; the cap just keeps a
// hostile locator from ballooning memory.
const maxBlobBytes = 10 << 20

// Image is an upload-ready item: the pipeline has already applied the
// media-type policy (gif passthrough, video downgrade) before it gets here.
type Image struct {
	URL string
	Alt string
}

// Uploader fetches media bytes and pushes them to the blob endpoint.
// Source fetches ride a retrying client (they are idempotent GETs); the
// blob upload itself is never retried here; auth recovery is the
// pipeline's responsibility.
type Uploader struct {
	fetch   *retryablehttp.Client
	client  *atproto.Client
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewUploader creates an uploader. metrics may be nil.
func NewUploader(client *atproto.Client, log *logging.Logger, metrics *monitoring.Metrics) *Uploader {
	fetch := retryablehttp.NewClient()
	fetch.RetryMax = 2
	fetch.RetryWaitMin = 500 * time.Millisecond
	fetch.RetryWaitMax = 5 * time.Second
	fetch.HTTPClient.Timeout = 30 * time.Second
	fetch.Logger = nil

	return &Uploader{
		fetch:   fetch,
		client:  client,
		log:     log,
		metrics: metrics,
	}
}

// Upload fetches the bytes at img.URL, derives their content type and
// (best-effort) pixel dimensions, and uploads them as a blob.
func (u *Uploader) Upload(ctx context.Context, accessToken string, img Image) (*atproto.UploadedImage, error) {
	data, contentType, err := u.fetchBytes(ctx, img.URL)
	if err != nil {
		u.metrics.RecordMediaUpload("fetch_failed")
		return nil, err
	}

	// Failure to decode dimensions is not fatal; the embed just ships
	// without an aspect ratio.
	ratio := dimensions(data)

	blob, err := u.client.UploadBlob(ctx, accessToken, data, contentType)
	if err != nil {
		u.metrics.RecordMediaUpload("upload_failed")
		return nil, err
	}

	u.metrics.RecordMediaUpload("success")
	u.log.Debug("media uploaded",
		zap.String("url", img.URL),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)))

	return &atproto.UploadedImage{
		Alt:         img.Alt,
		Image:       blob,
		AspectRatio: ratio,
	}, nil
}

func (u *Uploader) fetchBytes(ctx context.Context, url string) ([]byte, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &atproto.FetchError{URL: url}
	}

	resp, err := u.fetch.Do(req)
	if err != nil {
		return nil, "", &atproto.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &atproto.FetchError{Status: resp.StatusCode, URL: url}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes))
	if err != nil {
		return nil, "", &atproto.NetworkError{Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}

	return data, contentType, nil
}

// dimensions probes the image header for intrinsic pixel dimensions.
func dimensions(data []byte) *atproto.AspectRatio {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil
	}
	return &atproto.AspectRatio{Width: cfg.Width, Height: cfg.Height}
}
