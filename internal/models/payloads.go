package models

// InstagramPayload is a message on the instagram_imports queue
type InstagramPayload struct {
	URL         string         `json:"url" validate:"required"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	OgImage     string         `json:"ogImage"`
	MetaData    map[string]any `json:"meta_data"`
	UserID      string         `json:"user_id" validate:"required"`
	SavedAt     string         `json:"saved_at"`
	ErrorTrail
}

func (p InstagramPayload) BookmarkURL() string { return p.URL }

// CollectionNames returns meta_data.saved_collection_names
func (p InstagramPayload) CollectionNames() []string {
	return stringList(p.MetaData["saved_collection_names"])
}

// RaindropPayload is a message on the raindrop_imports queue
type RaindropPayload struct {
	URL          string         `json:"url" validate:"required"`
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	OgImage      string         `json:"ogImage"`
	CategoryName string         `json:"category_name"`
	MetaData     map[string]any `json:"meta_data"`
	UserID       string         `json:"user_id" validate:"required"`
	ErrorTrail
}

func (p RaindropPayload) BookmarkURL() string { return p.URL }

// Twitter message discriminators
const (
	TwitterCreateBookmark = "create_bookmark"
	TwitterLinkCategory   = "link_bookmark_category"
)

// TwitterPayload is a message on the twitter_imports queue. The set of
// implementations is closed: *TwitterCreatePayload and *TwitterLinkPayload.
type TwitterPayload interface {
	twitterPayload()
	Kind() string
	BookmarkURL() string
	Owner() string
	Trail() ErrorTrail
}

// TwitterCreatePayload creates a bookmark from a tweet
type TwitterCreatePayload struct {
	Type        string         `json:"type"`
	URL         string         `json:"url" validate:"required"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	OgImage     string         `json:"ogImage"`
	MetaData    map[string]any `json:"meta_data"`
	SortIndex   string         `json:"sort_index"`
	UserID      string         `json:"user_id" validate:"required"`
	InsertedAt  string         `json:"inserted_at"`
	ErrorTrail
}

// TwitterLinkPayload links an existing tweet bookmark to a category
type TwitterLinkPayload struct {
	Type         string `json:"type"`
	URL          string `json:"url" validate:"required"`
	UserID       string `json:"user_id" validate:"required"`
	CategoryName string `json:"category_name" validate:"required"`
	ErrorTrail
}

func (*TwitterCreatePayload) twitterPayload()       {}
func (p *TwitterCreatePayload) Kind() string        { return TwitterCreateBookmark }
func (p *TwitterCreatePayload) BookmarkURL() string { return p.URL }
func (p *TwitterCreatePayload) Owner() string       { return p.UserID }

func (*TwitterLinkPayload) twitterPayload()       {}
func (p *TwitterLinkPayload) Kind() string        { return TwitterLinkCategory }
func (p *TwitterLinkPayload) BookmarkURL() string { return p.URL }
func (p *TwitterLinkPayload) Owner() string       { return p.UserID }

// ImportLinkPayload is a message on the imports queue: the bookmark already
// exists and only its collections need linking.
type ImportLinkPayload struct {
	BookmarkID int64          `json:"bookmark_id" validate:"required,gt=0"`
	UserID     string         `json:"user_id" validate:"required"`
	MetaData   ImportMetaData `json:"meta_data"`
	ErrorTrail
}

// ImportMetaData is the part of meta_data the linking worker reads
type ImportMetaData struct {
	SavedCollectionNames []string `json:"saved_collection_names" validate:"required"`
}

// Enrichment sources
const (
	SourceInstagram = "instagram"
	SourceTwitter   = "twitter"
	SourceRaindrop  = "raindrop"
)

// EnrichmentPayload is a message on the ai-embeddings queue
type EnrichmentPayload struct {
	ID        int64          `json:"id" validate:"required,gt=0"`
	URL       string         `json:"url" validate:"required"`
	UserID    string         `json:"user_id" validate:"required"`
	OgImage   string         `json:"ogImage"`
	MediaType string         `json:"media_type"`
	Source    string         `json:"source"`
	MetaData  map[string]any `json:"meta_data"`
	ErrorTrail
}

func (p EnrichmentPayload) BookmarkURL() string { return p.URL }

// VideoURL returns meta_data.video_url if present
func (p EnrichmentPayload) VideoURL() string {
	s, _ := p.MetaData["video_url"].(string)
	return s
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
