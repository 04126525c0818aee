package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/atproto"
	"github.com/skybridge-labs/skybridge/internal/auth"
	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/pipeline"
)

// Actions accepted by Dispatch.
const (
	ActionAuthenticate = "authenticate"
	ActionCheckAuth    = "checkAuth"
	ActionLogout       = "logout"
	ActionReconnect    = "reconnect"
	ActionPost         = "postToBluesky"
	ActionPostThread   = "postBlueskyThread"
)

// Request is one inbound message from a client: the action plus that
// action's fields, flat in the same object. Unrelated fields are simply
// left zero for a given action.
type Request struct {
	Action string `json:"action"`

	// authenticate
	Identifier string `json:"identifier,omitempty"`
	Password   string `json:"password,omitempty"`
	RememberMe bool   `json:"rememberMe,omitempty"`

	// postToBluesky
	Text  string               `json:"text,omitempty"`
	Media []pipeline.MediaItem `json:"media,omitempty"`

	// postBlueskyThread
	Thread []pipeline.PostContent `json:"thread,omitempty"`
}

// Response is the uniform reply envelope. Exactly one of the outcome
// fields is meaningful: Success with optional Data, or Error.
type Response struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Router dispatches client messages to the session and posting layers.
type Router struct {
	auth     *auth.Manager
	pipeline *pipeline.Pipeline
	notify   auth.Notifier
	log      *logging.Logger
}

// NewRouter creates a message router. notify may be nil.
func NewRouter(authMgr *auth.Manager, pl *pipeline.Pipeline, notify auth.Notifier, log *logging.Logger) *Router {
	return &Router{auth: authMgr, pipeline: pl, notify: notify, log: log}
}

// statusData is the session-bearing payload of the auth-flavored actions.
// The session rides along so the client can display the handle and knows
// the tokens it is operating under.
type statusData struct {
	Authenticated bool             `json:"authenticated"`
	Session       *atproto.Session `json:"session,omitempty"`
}

// Dispatch routes one request and always returns a well-formed response.
func (r *Router) Dispatch(ctx context.Context, req *Request) *Response {
	id := uuid.NewString()
	log := r.log.With(zap.String("request_id", id), zap.String("action", req.Action))
	log.Info("dispatching message")

	resp := r.route(ctx, req)
	if !resp.Success {
		log.Warn("message failed", zap.String("error", resp.Error))
	}
	return resp
}

func (r *Router) route(ctx context.Context, req *Request) *Response {
	switch req.Action {
	case ActionAuthenticate:
		return r.authenticate(ctx, req)
	case ActionCheckAuth:
		return r.checkAuth(ctx)
	case ActionLogout:
		return r.logout(ctx)
	case ActionReconnect:
		return r.reconnect(ctx)
	case ActionPost:
		return r.post(ctx, req)
	case ActionPostThread:
		return r.postThread(ctx, req)
	default:
		return fail(fmt.Errorf("unknown action %q", req.Action))
	}
}

func (r *Router) authenticate(ctx context.Context, req *Request) *Response {
	if req.Identifier == "" || req.Password == "" {
		return fail(fmt.Errorf("identifier and password are required"))
	}

	session, err := r.auth.Authenticate(ctx, req.Identifier, req.Password, req.RememberMe)
	if err != nil {
		return fail(err)
	}
	r.statusChanged(true, session.Handle)
	return ok(statusData{Authenticated: true, Session: session})
}

func (r *Router) checkAuth(ctx context.Context) *Response {
	session := r.auth.ActiveSession(ctx)
	if !session.Usable() {
		return ok(statusData{Authenticated: false})
	}
	return ok(statusData{Authenticated: true, Session: session})
}

func (r *Router) logout(ctx context.Context) *Response {
	r.auth.Logout(ctx)
	r.statusChanged(false, "")
	return ok(statusData{Authenticated: false})
}

// reconnect runs the full recovery chain on demand, typically after the
// client noticed a dead session.
func (r *Router) reconnect(ctx context.Context) *Response {
	if !r.auth.Recover(ctx) {
		r.statusChanged(false, "")
		return fail(fmt.Errorf("reconnect failed - please log in again"))
	}
	session := r.auth.Session()
	r.statusChanged(true, session.Handle)
	return ok(statusData{Authenticated: true, Session: session})
}

func (r *Router) post(ctx context.Context, req *Request) *Response {
	if req.Text == "" && len(req.Media) == 0 {
		return fail(fmt.Errorf("post has no content"))
	}

	result, err := r.pipeline.Post(ctx, req.Text, req.Media)
	if err != nil {
		return fail(err)
	}
	return &Response{Success: true, Data: result, Warnings: result.Warnings}
}

func (r *Router) postThread(ctx context.Context, req *Request) *Response {
	if len(req.Thread) == 0 {
		return fail(fmt.Errorf("thread has no posts"))
	}

	results, err := r.pipeline.PostThread(ctx, req.Thread)
	if err != nil {
		// Partial progress is part of the answer; the client needs to know
		// which posts exist.
		resp := fail(err)
		resp.Data = results
		return resp
	}
	return ok(results)
}

func (r *Router) statusChanged(authenticated bool, handle string) {
	if r.notify != nil {
		r.notify.AuthStatusChanged(authenticated, handle)
	}
}

func ok(data interface{}) *Response {
	return &Response{Success: true, Data: data}
}

func fail(err error) *Response {
	return &Response{Success: false, Error: err.Error()}
}
