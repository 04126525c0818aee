package atproto

// Wire identifiers for the record types this bridge produces.
const (
	RecordTypePost    = "app.bsky.feed.post"
	EmbedTypeImages   = "app.bsky.embed.images"
	EmbedTypeExternal = "app.bsky.embed.external"
	FeatureMention    = "app.bsky.richtext.facet#mention"
	FeatureLink       = "app.bsky.richtext.facet#link"
	CollectionPost    = "app.bsky.feed.post"
)

// PostRecord is the wire-format post object submitted to the
// record-creation endpoint.
type PostRecord struct {
	Type      string    `json:"$type"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Facets    []Facet   `json:"facets,omitempty"`
	Embed     Embed     `json:"embed,omitempty"`
	Reply     *ReplyRef `json:"reply,omitempty"`
}

// Facet annotates a byte range of the post text with rich-text features.
type Facet struct {
	Index    ByteRange `json:"index"`
	Features []Feature `json:"features"`
}

// ByteRange addresses a span of the post text. Offsets are UTF-8 byte
// offsets, not rune offsets: the protocol indexes text by bytes, and
// multi-byte characters shift the two apart.
type ByteRange struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// Feature is one rich-text feature inside a facet. Type selects the
// variant: FeatureMention populates DID, FeatureLink populates URI.
type Feature struct {
	Type string `json:"$type"`
	DID  string `json:"did,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// MentionFeature builds a mention feature for the given identity.
func MentionFeature(did string) Feature {
	return Feature{Type: FeatureMention, DID: did}
}

// LinkFeature builds a link feature carrying the matched URL verbatim.
func LinkFeature(uri string) Feature {
	return Feature{Type: FeatureLink, URI: uri}
}

// Embed is the closed union of embed payloads a post may carry. Exactly
// one variant may be attached to a record.
type Embed interface {
	isEmbed()
}

// ImagesEmbed attaches up to four uploaded images.
type ImagesEmbed struct {
	Type   string          `json:"$type"`
	Images []UploadedImage `json:"images"`
}

func (*ImagesEmbed) isEmbed() {}

// NewImagesEmbed builds an images embed with the wire type tag set.
func NewImagesEmbed(images []UploadedImage) *ImagesEmbed {
	return &ImagesEmbed{Type: EmbedTypeImages, Images: images}
}

// UploadedImage references one uploaded blob with its alt text and, when
// the source bytes could be decoded, intrinsic dimensions.
type UploadedImage struct {
	Alt         string       `json:"alt"`
	Image       BlobRef      `json:"image"`
	AspectRatio *AspectRatio `json:"aspectRatio,omitempty"`
}

// AspectRatio carries intrinsic pixel dimensions.
type AspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ExternalEmbed attaches a link card.
type ExternalEmbed struct {
	Type     string       `json:"$type"`
	External ExternalInfo `json:"external"`
}

func (*ExternalEmbed) isEmbed() {}

// NewExternalEmbed builds an external embed with the wire type tag set.
func NewExternalEmbed(info ExternalInfo) *ExternalEmbed {
	return &ExternalEmbed{Type: EmbedTypeExternal, External: info}
}

// ExternalInfo is the link-card payload.
type ExternalInfo struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StrongRef identifies a record by URI and content hash.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// ReplyRef places a record in a thread: Root is the thread's first post,
// Parent the immediately preceding one.
type ReplyRef struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}
