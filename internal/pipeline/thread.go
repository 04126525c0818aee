package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/atproto"
)

// threadPostDelay spaces consecutive posts of a thread so the remote
// service timestamps them in order.
const threadPostDelay = 500 * time.Millisecond

// ThreadError reports which post of a thread failed. Posts before Index
// were created and are not rolled back.
type ThreadError struct {
	Index int
	Err   error
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("thread post %d failed: %v", e.Index+1, e.Err)
}

func (e *ThreadError) Unwrap() error { return e.Err }

// PostThread submits posts sequentially as a reply chain. The first post
// becomes the root; every later post replies to its predecessor with the
// shared root reference. On failure the results created so far are
// returned alongside a ThreadError.
func (p *Pipeline) PostThread(ctx context.Context, posts []PostContent) ([]Result, error) {
	if len(posts) == 0 {
		return nil, fmt.Errorf("thread has no posts")
	}
	if err := p.requireSession(ctx); err != nil {
		p.metrics.RecordThread("unauthenticated")
		return nil, err
	}

	var root *atproto.StrongRef
	var parent *atproto.StrongRef
	results := make([]Result, 0, len(posts))

	for i, post := range posts {
		if i > 0 {
			select {
			case <-time.After(threadPostDelay):
			case <-ctx.Done():
				p.metrics.RecordThread("failure")
				return results, &ThreadError{Index: i, Err: ctx.Err()}
			}
		}

		var reply *atproto.ReplyRef
		if root != nil {
			reply = &atproto.ReplyRef{Root: *root, Parent: *parent}
		}

		result, err := p.submit(ctx, post.Text, post.Media, reply)
		if err != nil {
			p.log.Warn("thread aborted",
				zap.Int("index", i),
				zap.Int("created", len(results)),
				zap.Error(err))
			p.metrics.RecordThread(outcome(err))
			return results, &ThreadError{Index: i, Err: err}
		}

		results = append(results, *result)
		ref := &atproto.StrongRef{URI: result.URI, CID: result.CID}
		if root == nil {
			root = ref
		}
		parent = ref
	}

	p.metrics.RecordThread("success")
	return results, nil
}
