package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOgImageAccessible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/ok.png":
			w.WriteHeader(http.StatusOK)
		case "/slow.png":
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewChecker(srv.Client(), 50*time.Millisecond)
	ctx := context.Background()
	assert.True(t, c.IsOgImageAccessible(ctx, srv.URL+"/ok.png"))
	assert.False(t, c.IsOgImageAccessible(ctx, srv.URL+"/missing.png"))
	assert.False(t, c.IsOgImageAccessible(ctx, srv.URL+"/slow.png"))
	assert.False(t, c.IsOgImageAccessible(ctx, "::not a url"))
}

func TestDiscoverOgImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/article":
			w.Write([]byte(`<html><head><meta property="og:image" content="/img/cover.jpg"></head><body></body></html>`))
		case "/card":
			w.Write([]byte(`<html><head><meta name="twitter:image" content="https://cdn.test/card.png"></head></html>`))
		default:
			w.Write([]byte(`<html><head><title>bare</title></head></html>`))
		}
	}))
	defer srv.Close()

	c := NewChecker(srv.Client(), time.Second)
	ctx := context.Background()

	img, err := c.DiscoverOgImage(ctx, srv.URL+"/article")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/img/cover.jpg", img)

	img, err = c.DiscoverOgImage(ctx, srv.URL+"/card")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/card.png", img)

	_, err = c.DiscoverOgImage(ctx, srv.URL+"/bare")
	assert.Error(t, err)
}
