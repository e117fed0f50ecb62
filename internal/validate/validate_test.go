package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recollect-worker/internal/models"
)

func TestInstagramPayload(t *testing.T) {
	p, err := Instagram(json.RawMessage(`{"url":"https://www.instagram.com/p/abc/","user_id":"u1","type":"link","meta_data":{"saved_collection_names":["Tech"]}}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, []string{"Tech"}, p.CollectionNames())

	_, err = Instagram(json.RawMessage(`{"url":"https://www.instagram.com/p/abc/"}`))
	assert.Error(t, err)

	_, err = Instagram(json.RawMessage(`{"url":42,"user_id":"u1"}`))
	assert.Error(t, err)

	_, err = Instagram(json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestTwitterPayloadVariants(t *testing.T) {
	p, err := Twitter(json.RawMessage(`{"type":"create_bookmark","url":"https://x.com/a/status/1","user_id":"u1","last_error":"timeout"}`))
	require.NoError(t, err)
	create, ok := p.(*models.TwitterCreatePayload)
	require.True(t, ok)
	assert.Equal(t, "https://x.com/a/status/1", create.URL)
	assert.Equal(t, "timeout", p.Trail().LastError)

	p, err = Twitter(json.RawMessage(`{"type":"link_bookmark_category","url":"https://x.com/a/status/1","user_id":"u1","category_name":"Reading"}`))
	require.NoError(t, err)
	link, ok := p.(*models.TwitterLinkPayload)
	require.True(t, ok)
	assert.Equal(t, "Reading", link.CategoryName)

	_, err = Twitter(json.RawMessage(`{"type":"link_bookmark_category","url":"https://x.com/a/status/1","user_id":"u1"}`))
	assert.Error(t, err)

	_, err = Twitter(json.RawMessage(`{"type":"delete_bookmark","url":"https://x.com/a/status/1","user_id":"u1"}`))
	assert.Error(t, err)
}

func TestImportLinkPayload(t *testing.T) {
	p, err := ImportLink(json.RawMessage(`{"bookmark_id":12,"user_id":"u1","meta_data":{"saved_collection_names":["Tech","Food"]}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.BookmarkID)

	_, err = ImportLink(json.RawMessage(`{"bookmark_id":12,"user_id":"u1","meta_data":{}}`))
	assert.Error(t, err)

	_, err = ImportLink(json.RawMessage(`{"bookmark_id":0,"user_id":"u1","meta_data":{"saved_collection_names":[]}}`))
	assert.Error(t, err)
}

func TestURLAllowLists(t *testing.T) {
	assert.True(t, IsInstagramURL("https://www.instagram.com/p/abc/"))
	assert.True(t, IsInstagramURL("https://instagram.com/reel/abc"))
	assert.False(t, IsInstagramURL("https://instagram.com.evil.io/p/abc"))
	assert.False(t, IsInstagramURL("ftp://instagram.com/p/abc"))

	assert.True(t, IsTwitterURL("https://x.com/user/status/1"))
	assert.True(t, IsTwitterURL("https://mobile.twitter.com/user/status/1"))
	assert.False(t, IsTwitterURL("https://notx.com/user/status/1"))

	assert.True(t, IsHTTPURL("http://example.com"))
	assert.False(t, IsHTTPURL("javascript:alert(1)"))
	assert.False(t, IsHTTPURL("/relative/path"))

	assert.True(t, IsMediaURL("https://video.twimg.com/ext_tw_video/1/vid.mp4", "twitter"))
	assert.False(t, IsMediaURL("http://video.twimg.com/ext_tw_video/1/vid.mp4", "twitter"))
	assert.True(t, IsMediaURL("https://scontent-lax3-1.cdninstagram.com/v/t50/vid.mp4", "instagram"))
	assert.False(t, IsMediaURL("https://video.twimg.com/a.mp4", "instagram"))
	assert.False(t, IsMediaURL("https://video.twimg.com/a.mp4", "raindrop"))
}
