// Package vault stores long-lived login credentials for opt-in automatic
// re-authentication ("remember me").
//
// The encoding is reversible on purpose: the secret must be replayed to
// the remote auth endpoint during session recovery, so this is obfuscation
// against casual inspection, not encryption. Anyone with read access to
// the local store can recover the credentials.
package vault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/store"
)

const storageKey = "bluesky_credentials"

// ErrNoCredentials is returned when nothing has been remembered.
var ErrNoCredentials = errors.New("no stored credentials")

// Credentials is a remembered login.
type Credentials struct {
	Identifier string    `json:"identifier"`
	Secret     string    `json:"secret"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Vault encodes credentials into the durable store and back.
type Vault struct {
	store *store.Store
	log   *logging.Logger
}

// New creates a vault over the given store.
func New(s *store.Store, log *logging.Logger) *Vault {
	return &Vault{store: s, log: log}
}

// Save remembers creds, replacing any previous entry.
func (v *Vault) Save(ctx context.Context, creds Credentials) error {
	if creds.CapturedAt.IsZero() {
		creds.CapturedAt = time.Now().UTC()
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if err := v.store.Put(ctx, storageKey, []byte(encoded)); err != nil {
		return err
	}
	v.log.Info("credentials stored for automatic reconnection",
		zap.String("identifier", creds.Identifier))
	return nil
}

// Load decodes the remembered credentials, or returns ErrNoCredentials.
func (v *Vault) Load(ctx context.Context) (*Credentials, error) {
	raw, err := v.store.Get(ctx, storageKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &creds, nil
}

// Has reports whether credentials are remembered.
func (v *Vault) Has(ctx context.Context) bool {
	_, err := v.store.Get(ctx, storageKey)
	return err == nil
}

// Clear forgets the remembered credentials.
func (v *Vault) Clear(ctx context.Context) error {
	return v.store.Delete(ctx, storageKey)
}
