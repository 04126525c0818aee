package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skybridge-labs/skybridge/internal/atproto"
	"github.com/skybridge-labs/skybridge/internal/auth"
	"github.com/skybridge-labs/skybridge/internal/linkcard"
	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/media"
	"github.com/skybridge-labs/skybridge/internal/monitoring"
	"github.com/skybridge-labs/skybridge/internal/richtext"
)

const (
	// maxImagesPerPost is the remote service's per-post image limit.
	maxImagesPerPost = 4

	warnVideoDowngrade = "Videos cannot be uploaded to Bluesky. Only the thumbnail will be included."
	warnImageLimit     = "Only the first 4 images were uploaded (Bluesky limit)."
	warnUploadFailed   = "Failed to upload some media files."
)

// MediaKind tags a MediaItem variant.
type MediaKind string

// The closed set of media kinds supplied by the content extractor.
const (
	MediaImage          MediaKind = "image"
	MediaGIF            MediaKind = "gif"
	MediaVideo          MediaKind = "video"
	MediaVideoThumbnail MediaKind = "video_thumbnail"
)

// MediaItem is one attachment extracted from the host page.
type MediaItem struct {
	Kind MediaKind `json:"type"`
	URL  string    `json:"url"`
	Alt  string    `json:"alt"`
}

// PostContent is the text and media of a single post.
type PostContent struct {
	Text  string      `json:"text"`
	Media []MediaItem `json:"media"`
}

// Result identifies a created record plus any user-visible warnings
// accumulated while building it.
type Result struct {
	URI      string   `json:"uri"`
	CID      string   `json:"cid"`
	Warnings []string `json:"warnings,omitempty"`
}

// Pipeline assembles and submits post records: media filtering and upload,
// link cards, facets, and the bounded recovery-and-retry cycle around
// record creation.
type Pipeline struct {
	auth     *auth.Manager
	client   *atproto.Client
	uploader *media.Uploader
	cards    *linkcard.Fetcher
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// New creates a posting pipeline. metrics may be nil.
func New(authMgr *auth.Manager, client *atproto.Client, uploader *media.Uploader, cards *linkcard.Fetcher, log *logging.Logger, metrics *monitoring.Metrics) *Pipeline {
	return &Pipeline{
		auth:     authMgr,
		client:   client,
		uploader: uploader,
		cards:    cards,
		log:      log,
		metrics:  metrics,
	}
}

// Post submits a single post.
func (p *Pipeline) Post(ctx context.Context, text string, items []MediaItem) (*Result, error) {
	if err := p.requireSession(ctx); err != nil {
		return nil, err
	}

	result, err := p.submit(ctx, text, items, nil)
	if err != nil {
		p.metrics.RecordPost(outcome(err))
		return nil, err
	}
	p.metrics.RecordPost("success")
	return result, nil
}

// requireSession checks that a structurally usable session exists before
// any work is done. The remote service still has the final say.
func (p *Pipeline) requireSession(ctx context.Context) error {
	session := p.auth.ActiveSession(ctx)
	if session == nil {
		return atproto.ErrNotAuthenticated
	}
	if !session.Usable() {
		return atproto.ErrInvalidSession
	}
	return nil
}

// submit builds one record and submits it, retrying at most once across an
// auth-recovery cycle. The cap is structural: the loop runs two iterations
// and a second rejection falls through to SessionExpired no matter which
// recovery path succeeded in between.
func (p *Pipeline) submit(ctx context.Context, text string, items []MediaItem, reply *atproto.ReplyRef) (*Result, error) {
	embed, warnings := p.buildEmbed(ctx, text, items)

	record := &atproto.PostRecord{
		Type:      atproto.RecordTypePost,
		Text:      text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Facets:    richtext.Facets(text),
		Embed:     embed,
		Reply:     reply,
	}

	for attempt := 0; attempt <= 1; attempt++ {
		session := p.auth.ActiveSession(ctx)
		if session == nil {
			return nil, atproto.ErrNotAuthenticated
		}

		created, err := p.client.CreateRecord(ctx, session.AccessJwt, session.DID, record)
		if err == nil {
			p.log.Info("posted",
				zap.String("uri", created.URI),
				zap.Int("attempt", attempt),
				zap.Strings("warnings", warnings))
			return &Result{URI: created.URI, CID: created.CID, Warnings: warnings}, nil
		}

		if !atproto.IsAuthRejection(err) {
			return nil, err
		}
		if attempt == 1 {
			break
		}

		p.log.Info("post rejected for auth, attempting recovery")
		if !p.recoverOnce(ctx) {
			p.auth.ClearSession(ctx)
			return nil, atproto.ErrSessionExpired
		}
	}

	// Freshly recovered token rejected again: terminal.
	p.auth.ClearSession(ctx)
	return nil, atproto.ErrSessionExpired
}

// recoverOnce runs the single recovery cycle a post attempt is allowed:
// refresh, then re-auth with stored credentials.
func (p *Pipeline) recoverOnce(ctx context.Context) bool {
	if session, err := p.auth.Refresh(ctx); err == nil && session.Usable() {
		return true
	}
	return p.auth.ReauthenticateStored(ctx).Usable()
}

// buildEmbed produces the post's embed, if any: an images embed from the
// filtered media, else a link card for the first URL in the text. Media
// failures downgrade to warnings; a post never fails because of its embed.
func (p *Pipeline) buildEmbed(ctx context.Context, text string, items []MediaItem) (atproto.Embed, []string) {
	images, warnings := filterMedia(items)

	if len(images) > maxImagesPerPost {
		warnings = append(warnings, warnImageLimit)
		images = images[:maxImagesPerPost]
	}

	if len(images) > 0 {
		uploaded, err := p.uploadAll(ctx, images)
		if err != nil {
			p.log.Warn("media upload failed, posting without embed", zap.Error(err))
			warnings = append(warnings, warnUploadFailed)
		} else {
			return atproto.NewImagesEmbed(uploaded), warnings
		}
	}

	if urls := richtext.ExtractURLs(text); len(urls) > 0 {
		if card := p.cards.Fetch(ctx, urls[0]); card != nil {
			return atproto.NewExternalEmbed(*card), warnings
		}
	}

	return nil, warnings
}

// filterMedia applies the media-type policy: images and gifs pass through
// (the remote service renders gifs as images), video items are downgraded
// to their thumbnail when the locator looks like a still image, and always
// produce a warning.
func filterMedia(items []MediaItem) ([]media.Image, []string) {
	var images []media.Image
	var warnings []string

	for _, item := range items {
		switch item.Kind {
		case MediaImage, MediaGIF:
			images = append(images, media.Image{URL: item.URL, Alt: item.Alt})
		case MediaVideo, MediaVideoThumbnail:
			warnings = append(warnings, warnVideoDowngrade)
			if looksLikeStill(item.URL) {
				images = append(images, media.Image{
					URL: item.URL,
					Alt: item.Alt + " (Video thumbnail)",
				})
			}
		default:
			warnings = append(warnings, fmt.Sprintf("Unsupported media type %q was skipped.", item.Kind))
		}
	}

	return images, warnings
}

func looksLikeStill(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "jpg") ||
		strings.Contains(lower, "jpeg") ||
		strings.Contains(lower, "png")
}

// uploadAll uploads the (already capped) image batch concurrently,
// preserving input order in the result.
func (p *Pipeline) uploadAll(ctx context.Context, images []media.Image) ([]atproto.UploadedImage, error) {
	session := p.auth.ActiveSession(ctx)
	if session == nil {
		return nil, atproto.ErrNotAuthenticated
	}

	uploaded := make([]atproto.UploadedImage, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			out, err := p.uploader.Upload(gctx, session.AccessJwt, img)
			if err != nil {
				return err
			}
			uploaded[i] = *out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploaded, nil
}

// outcome maps a post failure to a metrics label.
func outcome(err error) string {
	switch {
	case errors.Is(err, atproto.ErrSessionExpired):
		return "expired"
	case errors.Is(err, atproto.ErrNotAuthenticated), errors.Is(err, atproto.ErrInvalidSession):
		return "unauthenticated"
	default:
		return "failure"
	}
}
