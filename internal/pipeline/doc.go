// Package pipeline turns extracted page content into Bluesky records.
//
// It owns the full submission path: media filtering and concurrent blob
// upload, link-card fallback, facet detection, and the single
// recover-and-retry cycle permitted when the service rejects a token
// mid-post. Threads are posted sequentially with reply references and a
// short pacing delay; partial thread results survive a mid-thread failure.
package pipeline
