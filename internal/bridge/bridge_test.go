package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybridge-labs/skybridge/internal/atproto"
	"github.com/skybridge-labs/skybridge/internal/auth"
	"github.com/skybridge-labs/skybridge/internal/linkcard"
	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/media"
	"github.com/skybridge-labs/skybridge/internal/pipeline"
	"github.com/skybridge-labs/skybridge/internal/store"
	"github.com/skybridge-labs/skybridge/internal/vault"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []bool
}

func (n *recordingNotifier) AuthStatusChanged(authenticated bool, handle string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, authenticated)
}

func (n *recordingNotifier) all() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]bool, len(n.events))
	copy(out, n.events)
	return out
}

// newTestRouter wires a router against a fake XRPC service that accepts
// logins and posts.
func newTestRouter(t *testing.T) (*Router, *auth.Manager, *recordingNotifier) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"accessJwt":  "access",
			"refreshJwt": "refresh",
			"did":        "did:plc:alice",
			"handle":     "alice.bsky.social",
		})
	})
	mux.HandleFunc("/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"uri": "at://did:plc:alice/app.bsky.feed.post/xyz",
			"cid": "cid-xyz",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	log := logging.NewNop()
	client := atproto.NewClient(srv.URL, 5*time.Second, log)

	s, err := store.Open(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	authMgr := auth.NewManager(client, s, vault.New(s, log), log, nil)
	pl := pipeline.New(authMgr, client, media.NewUploader(client, log, nil), linkcard.NewFetcher(log), log, nil)
	notify := &recordingNotifier{}
	return NewRouter(authMgr, pl, notify, log), authMgr, notify
}

// dispatchJSON decodes a raw client message exactly as the HTTP layer
// would and routes it.
func dispatchJSON(t *testing.T, r *Router, body string) *Response {
	t.Helper()
	var req Request
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return r.Dispatch(context.Background(), &req)
}

func TestDispatch(t *testing.T) {
	t.Run("unknown action", func(t *testing.T) {
		r, _, _ := newTestRouter(t)
		resp := dispatchJSON(t, r, `{"action":"bogus"}`)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "unknown action")
	})

	t.Run("authenticate with top-level fields", func(t *testing.T) {
		r, _, notify := newTestRouter(t)
		resp := dispatchJSON(t, r,
			`{"action":"authenticate","identifier":"alice.bsky.social","password":"pw","rememberMe":true}`)
		require.True(t, resp.Success, resp.Error)

		data := resp.Data.(statusData)
		assert.True(t, data.Authenticated)
		require.NotNil(t, data.Session)
		assert.Equal(t, "alice.bsky.social", data.Session.Handle)
		assert.Equal(t, "access", data.Session.AccessJwt)
		assert.Equal(t, []bool{true}, notify.all())
	})

	t.Run("authenticate remembers credentials on request", func(t *testing.T) {
		r, authMgr, _ := newTestRouter(t)
		resp := dispatchJSON(t, r,
			`{"action":"authenticate","identifier":"alice.bsky.social","password":"pw","rememberMe":true}`)
		require.True(t, resp.Success)
		assert.True(t, authMgr.HasStoredCredentials(context.Background()))
	})

	t.Run("authenticate requires both fields", func(t *testing.T) {
		r, _, _ := newTestRouter(t)
		resp := dispatchJSON(t, r, `{"action":"authenticate","identifier":"alice"}`)
		assert.False(t, resp.Success)
	})

	t.Run("checkAuth without session", func(t *testing.T) {
		r, _, _ := newTestRouter(t)
		resp := dispatchJSON(t, r, `{"action":"checkAuth"}`)
		require.True(t, resp.Success)
		data := resp.Data.(statusData)
		assert.False(t, data.Authenticated)
		assert.Nil(t, data.Session)
	})

	t.Run("checkAuth with session returns it", func(t *testing.T) {
		r, authMgr, _ := newTestRouter(t)
		authMgr.SetSession(context.Background(), &atproto.Session{
			AccessJwt: "a", RefreshJwt: "r", DID: "did:plc:alice", Handle: "alice.bsky.social",
		})

		resp := dispatchJSON(t, r, `{"action":"checkAuth"}`)
		require.True(t, resp.Success)
		data := resp.Data.(statusData)
		assert.True(t, data.Authenticated)
		require.NotNil(t, data.Session)
		assert.Equal(t, "did:plc:alice", data.Session.DID)
	})

	t.Run("logout broadcasts signed out", func(t *testing.T) {
		r, authMgr, notify := newTestRouter(t)
		authMgr.SetSession(context.Background(), &atproto.Session{
			AccessJwt: "a", RefreshJwt: "r", DID: "did:plc:alice",
		})

		resp := dispatchJSON(t, r, `{"action":"logout"}`)
		require.True(t, resp.Success)
		assert.Nil(t, authMgr.Session())
		assert.Equal(t, []bool{false}, notify.all())
	})

	t.Run("reconnect without anything to recover", func(t *testing.T) {
		r, _, notify := newTestRouter(t)
		resp := dispatchJSON(t, r, `{"action":"reconnect"}`)
		assert.False(t, resp.Success)
		assert.Equal(t, []bool{false}, notify.all())
	})

	t.Run("reconnect with stored credentials returns session", func(t *testing.T) {
		r, authMgr, notify := newTestRouter(t)
		_, err := authMgr.Authenticate(context.Background(), "alice", "pw", true)
		require.NoError(t, err)
		authMgr.ClearSession(context.Background())

		resp := dispatchJSON(t, r, `{"action":"reconnect"}`)
		require.True(t, resp.Success, resp.Error)
		data := resp.Data.(statusData)
		assert.True(t, data.Authenticated)
		require.NotNil(t, data.Session)
		assert.Equal(t, "alice.bsky.social", data.Session.Handle)
		assert.Equal(t, []bool{true}, notify.all())
	})

	t.Run("post with top-level text", func(t *testing.T) {
		r, authMgr, _ := newTestRouter(t)
		authMgr.SetSession(context.Background(), &atproto.Session{
			AccessJwt: "a", RefreshJwt: "r", DID: "did:plc:alice",
		})

		resp := dispatchJSON(t, r, `{"action":"postToBluesky","text":"hello"}`)
		require.True(t, resp.Success, resp.Error)
		result := resp.Data.(*pipeline.Result)
		assert.NotEmpty(t, result.URI)
	})

	t.Run("post rejects empty content", func(t *testing.T) {
		r, _, _ := newTestRouter(t)
		resp := dispatchJSON(t, r, `{"action":"postToBluesky"}`)
		assert.False(t, resp.Success)
	})

	t.Run("post without session surfaces login prompt wording", func(t *testing.T) {
		r, _, _ := newTestRouter(t)
		resp := dispatchJSON(t, r, `{"action":"postToBluesky","text":"hello"}`)
		require.False(t, resp.Success)
		assert.Equal(t, "Not authenticated - please log in again", resp.Error)
	})

	t.Run("thread posts under the thread key", func(t *testing.T) {
		r, authMgr, _ := newTestRouter(t)
		authMgr.SetSession(context.Background(), &atproto.Session{
			AccessJwt: "a", RefreshJwt: "r", DID: "did:plc:alice",
		})

		resp := dispatchJSON(t, r,
			`{"action":"postBlueskyThread","thread":[{"text":"one"},{"text":"two"}]}`)
		require.True(t, resp.Success, resp.Error)
		results := resp.Data.([]pipeline.Result)
		assert.Len(t, results, 2)
	})

	t.Run("thread rejects empty post list", func(t *testing.T) {
		r, _, _ := newTestRouter(t)
		resp := dispatchJSON(t, r, `{"action":"postBlueskyThread","thread":[]}`)
		assert.False(t, resp.Success)
	})
}
