// Package richtext turns raw post text into wire-format rich-text facets.
package richtext

import (
	"regexp"

	"github.com/skybridge-labs/skybridge/internal/atproto"
)

var (
	mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9.-]+)`)
	urlPattern     = regexp.MustCompile(`https?://[^\s]+`)
)

// Facets scans text for @handle mentions and http(s) links and returns
// their facets: all mention facets first, then all link facets, each group
// in left-to-right order.
//
// Offsets are UTF-8 byte offsets into text, which is exactly what Go
// regexp indexes are; multi-byte characters before a match push the byte
// offsets past the rune count, as the protocol requires.
//
// The mention identity is synthesized directly from the handle text
// ("did:plc:" + handle). This is a known simplification, not a verified
// identity lookup, and will not match real identities for arbitrary
// handles.
func Facets(text string) []atproto.Facet {
	var facets []atproto.Facet

	for _, m := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		handle := text[m[2]:m[3]]
		facets = append(facets, atproto.Facet{
			Index:    atproto.ByteRange{ByteStart: m[0], ByteEnd: m[1]},
			Features: []atproto.Feature{atproto.MentionFeature("did:plc:" + handle)},
		})
	}

	for _, m := range urlPattern.FindAllStringIndex(text, -1) {
		facets = append(facets, atproto.Facet{
			Index:    atproto.ByteRange{ByteStart: m[0], ByteEnd: m[1]},
			Features: []atproto.Feature{atproto.LinkFeature(text[m[0]:m[1]])},
		})
	}

	return facets
}

// ExtractURLs returns every http(s) URL in text, in order. The first match
// feeds link-card embedding when a post carries no media embed.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}
