package atproto

import "encoding/json"

// Session is the credential pair returned by the remote auth endpoints.
// Field names match the wire format so the session round-trips through
// storage and back to API consumers unchanged.
type Session struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	Email      string `json:"email,omitempty"`
}

// Usable reports whether the session can authorize remote calls. A session
// without an access token or an identity is treated as absent.
func (s *Session) Usable() bool {
	return s != nil && s.AccessJwt != "" && s.DID != ""
}

// BlobRef is the opaque remote handle returned by the blob-upload endpoint.
// It is passed through verbatim into the record that references it.
type BlobRef = json.RawMessage

// CreateRecordResponse identifies a created record.
type CreateRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// wireError is the error body shape returned by XRPC endpoints.
type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// text returns the most useful human-readable message, falling back as the
// remote does not always populate both fields.
func (e wireError) text(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return fallback
}
