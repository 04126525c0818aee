package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybridge-labs/skybridge/internal/atproto"
)

func TestFacets(t *testing.T) {
	t.Run("no entities", func(t *testing.T) {
		assert.Nil(t, Facets("just plain text"))
	})

	t.Run("single mention", func(t *testing.T) {
		facets := Facets("hello @alice.bsky.social!")
		require.Len(t, facets, 1)

		f := facets[0]
		assert.Equal(t, 6, f.Index.ByteStart)
		assert.Equal(t, 24, f.Index.ByteEnd)
		require.Len(t, f.Features, 1)
		assert.Equal(t, atproto.FeatureMention, f.Features[0].Type)
		assert.Equal(t, "did:plc:alice.bsky.social", f.Features[0].DID)
	})

	t.Run("single link", func(t *testing.T) {
		facets := Facets("see https://example.com/page for details")
		require.Len(t, facets, 1)

		f := facets[0]
		assert.Equal(t, 4, f.Index.ByteStart)
		assert.Equal(t, 28, f.Index.ByteEnd)
		require.Len(t, f.Features, 1)
		assert.Equal(t, atproto.FeatureLink, f.Features[0].Type)
		assert.Equal(t, "https://example.com/page", f.Features[0].URI)
	})

	t.Run("mention then link", func(t *testing.T) {
		facets := Facets("@abc.def http://x.com")
		require.Len(t, facets, 2)

		assert.Equal(t, atproto.FeatureMention, facets[0].Features[0].Type)
		assert.Equal(t, 0, facets[0].Index.ByteStart)
		assert.Equal(t, 8, facets[0].Index.ByteEnd)

		assert.Equal(t, atproto.FeatureLink, facets[1].Features[0].Type)
		assert.Equal(t, 9, facets[1].Index.ByteStart)
		assert.Equal(t, 21, facets[1].Index.ByteEnd)
	})

	t.Run("multibyte text shifts byte offsets", func(t *testing.T) {
		// "héllo " is 7 bytes: the é takes two.
		facets := Facets("héllo @bob.test")
		require.Len(t, facets, 1)
		assert.Equal(t, 7, facets[0].Index.ByteStart)
		assert.Equal(t, 16, facets[0].Index.ByteEnd)
	})

	t.Run("multiple mentions", func(t *testing.T) {
		facets := Facets("@a.com and @b.org")
		require.Len(t, facets, 2)
		assert.Equal(t, "did:plc:a.com", facets[0].Features[0].DID)
		assert.Equal(t, "did:plc:b.org", facets[1].Features[0].DID)
	})
}

func TestExtractURLs(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		assert.Empty(t, ExtractURLs("no links here"))
	})

	t.Run("several", func(t *testing.T) {
		urls := ExtractURLs("a https://one.example b http://two.example/c")
		require.Len(t, urls, 2)
		assert.Equal(t, "https://one.example", urls[0])
		assert.Equal(t, "http://two.example/c", urls[1])
	})
}
