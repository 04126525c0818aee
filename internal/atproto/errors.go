package atproto

import (
	"errors"
	"fmt"
)

// Sentinel errors whose text is shown verbatim in the requesting UI. The
// popup matches on these phrases to decide when to show its login prompt,
// so the wording is part of the contract.
var (
	ErrNotAuthenticated = errors.New("Not authenticated - please log in again")
	ErrInvalidSession   = errors.New("Invalid session - please log in again")
	ErrNoSession        = errors.New("No session to refresh")
	ErrSessionExpired   = errors.New("Session expired - please log in again")
)

// AuthError reports that the remote auth endpoint rejected credentials.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Authentication failed"
}

// RefreshError reports a failed token refresh. The session is deliberately
// left in place so recovery can chain into credential re-auth.
type RefreshError struct {
	Status int
}

func (e *RefreshError) Error() string {
	return "Session refresh failed"
}

// AuthRequiredError reports a 401/403 on an authenticated call. The caller
// owns the recovery-and-retry decision.
type AuthRequiredError struct {
	Status  int
	Message string
}

func (e *AuthRequiredError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("authorization rejected (status %d)", e.Status)
}

// PostError reports that the remote service rejected a record creation for
// a reason other than auth.
type PostError struct {
	Status  int
	Message string
}

func (e *PostError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Failed to post"
}

// UploadError reports a non-auth blob upload rejection.
type UploadError struct {
	Status  int
	Message string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("Failed to upload media: %d - %s", e.Status, e.Message)
}

// FetchError reports a non-2xx response while fetching media bytes from
// their source locator.
type FetchError struct {
	Status int
	URL    string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Failed to fetch media: %d", e.Status)
}

// NetworkError reports a transport-level failure beneath any endpoint.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "Network error - please check your connection"
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsAuthRejection reports whether err is a 401/403 rejection that the
// bounded recovery cycle may act on.
func IsAuthRejection(err error) bool {
	var authErr *AuthRequiredError
	return errors.As(err, &authErr)
}
