package atproto

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/logging"
)

// XRPC endpoint paths consumed by the bridge.
const (
	procCreateSession  = "/com.atproto.server.createSession"
	procRefreshSession = "/com.atproto.server.refreshSession"
	procGetProfile     = "/app.bsky.actor.getProfile"
	procCreateRecord   = "/com.atproto.repo.createRecord"
	procUploadBlob     = "/com.atproto.repo.uploadBlob"
)

// Client is the XRPC client for the remote service. It performs no
// automatic retries: the posting pipeline owns the one bounded
// recovery-and-retry cycle, and stacking transport retries underneath it
// would blur that cap.
type Client struct {
	http *resty.Client
	log  *logging.Logger
}

// NewClient creates a client against the given XRPC base URL.
func NewClient(baseURL string, timeout time.Duration, log *logging.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "skybridge/1.0")

	return &Client{http: rc, log: log}
}

// CreateSession exchanges credentials for a session.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	var session Session
	var apiErr wireError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"identifier": identifier, "password": password}).
		SetResult(&session).
		SetError(&apiErr).
		Post(procCreateSession)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.IsError() {
		c.log.Warn("create session rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("error", apiErr.Error))
		return nil, &AuthError{Status: resp.StatusCode(), Message: apiErr.text("Authentication failed")}
	}

	return &session, nil
}

// RefreshSession exchanges a refresh token for a new session. On rejection
// it returns a RefreshError and leaves any caller-held session untouched;
// the recovery chain decides what happens next.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(refreshToken).
		SetResult(&session).
		Post(procRefreshSession)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.IsError() {
		c.log.Warn("session refresh rejected", zap.Int("status", resp.StatusCode()))
		return nil, &RefreshError{Status: resp.StatusCode()}
	}

	return &session, nil
}

// GetProfile issues the lightweight authenticated read used to validate a
// session. Any non-2xx response is an error.
func (c *Client) GetProfile(ctx context.Context, accessToken, actor string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("actor", actor).
		Get(procGetProfile)
	if err != nil {
		return &NetworkError{Err: err}
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return &AuthRequiredError{Status: resp.StatusCode()}
	}
	if resp.IsError() {
		return &PostError{Status: resp.StatusCode(), Message: "profile check failed"}
	}
	return nil
}

// CreateRecord submits a post record to the repo identified by did.
func (c *Client) CreateRecord(ctx context.Context, accessToken, did string, record *PostRecord) (*CreateRecordResponse, error) {
	var created CreateRecordResponse
	var apiErr wireError

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(map[string]interface{}{
			"repo":       did,
			"collection": CollectionPost,
			"record":     record,
		}).
		SetResult(&created).
		SetError(&apiErr).
		Post(procCreateRecord)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, &AuthRequiredError{Status: resp.StatusCode(), Message: apiErr.text("")}
	case resp.IsError():
		c.log.Warn("create record rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("message", apiErr.text("")))
		return nil, &PostError{Status: resp.StatusCode(), Message: apiErr.text("Failed to post")}
	}

	return &created, nil
}

// UploadBlob uploads raw bytes with their content type and returns the
// opaque blob reference. It never retries on auth rejection; that is the
// pipeline's call to make.
func (c *Client) UploadBlob(ctx context.Context, accessToken string, data []byte, contentType string) (BlobRef, error) {
	var result struct {
		Blob BlobRef `json:"blob"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		SetResult(&result).
		Post(procUploadBlob)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, &AuthRequiredError{Status: resp.StatusCode(), Message: "Authentication failed during media upload"}
	case resp.IsError():
		return nil, &UploadError{Status: resp.StatusCode(), Message: resp.String()}
	}

	return result.Blob, nil
}
