package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recollect-worker/internal/models"
	"recollect-worker/internal/tasks"
)

type inlinePool struct {
	tasks []tasks.Task
	full  bool
}

func (p *inlinePool) Submit(t tasks.Task) bool {
	if p.full {
		return false
	}
	p.tasks = append(p.tasks, t)
	return true
}

type namer map[string]string

func (n namer) UserName(ctx context.Context, userID string) (string, error) {
	if name, ok := n[userID]; ok {
		return name, nil
	}
	return "", errors.New("profile not found")
}

func TestPublicCategoryHook(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		paths = append(paths, body["path"])
		mu.Unlock()
	}))
	defer srv.Close()

	pool := &inlinePool{}
	hook := PublicCategoryHook(pool, namer{"u1": "ana"}, New(testConfig(srv.URL), nil, nil, nil), "imports")
	hook([]models.Category{
		{ID: 1, UserID: "u1", CategorySlug: "books", IsPublic: true},
		{ID: 2, UserID: "u1", IsPublic: true},
		{ID: 3, UserID: "ghost", CategorySlug: "films", IsPublic: true},
	})
	require.Len(t, pool.tasks, 2)

	assert.NoError(t, pool.tasks[0].Run(context.Background()))
	assert.Error(t, pool.tasks[1].Run(context.Background()))
	assert.Equal(t, []string{"/public/ana/books"}, paths)
}

func TestPublicCategoryHookFullPool(t *testing.T) {
	pool := &inlinePool{full: true}
	hook := PublicCategoryHook(pool, namer{}, New(testConfig(""), nil, nil, nil), "imports")
	hook([]models.Category{{ID: 1, UserID: "u1", CategorySlug: "books"}})
	assert.Empty(t, pool.tasks)
}
