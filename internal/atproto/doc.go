// Package atproto implements the XRPC client and wire types for the
// remote service: session creation and refresh, profile reads, record
// creation, and blob upload.
//
// The package also defines the error taxonomy shared by the session and
// posting layers. Auth rejections (401/403) surface as AuthRequiredError
// so callers can drive the bounded recovery-and-retry cycle; every other
// failure carries the remote service's human-readable message.
package atproto
