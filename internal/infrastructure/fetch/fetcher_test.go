package fetch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aivis/internal/infrastructure/fetch"
	apperrors "github.com/turtacn/aivis/pkg/errors"
)

// blockSubstr validates every URL except those containing a marker string,
// standing in for the production network guard.
type blockSubstr struct{ marker string }

func (v blockSubstr) ValidateURL(_ context.Context, raw string) (*url.URL, error) {
	if v.marker != "" && strings.Contains(raw, v.marker) {
		return nil, apperrors.SSRFBlocked("url host is not allowed").WithDetailf("url=%s", raw)
	}
	return url.Parse(raw)
}

func (v blockSubstr) CheckRedirect(max int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return apperrors.FetchFailed("too many redirects")
		}
		_, err := v.ValidateURL(req.Context(), req.URL.String())
		return err
	}
}

func allowAll() blockSubstr { return blockSubstr{} }

type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	sets   int
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = b
	return nil
}

func TestFetcher_Fetch_Success(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		fmt.Fprint(w, "<html><body><h1>Acme Plumbing</h1></body></html>")
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{}, allowAll(), nil)
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, page.URL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.HTML, "Acme Plumbing")
	assert.False(t, page.FromCache)
	assert.False(t, page.FetchedAt.IsZero())
	assert.EqualValues(t, 1, hits.Load())
}

func TestFetcher_Fetch_Non2xxStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{}, allowAll(), nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchFailed(err))
	assert.Contains(t, err.Error(), "404")
}

func TestFetcher_Fetch_BodyTooLarge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 256))
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{MaxBodyBytes: 64}, allowAll(), nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchFailed(err))
	assert.Contains(t, err.Error(), "too large")
}

func TestFetcher_Fetch_GuardBlocksBeforeRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "never served")
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{}, blockSubstr{marker: "127.0.0.1"}, nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsSSRFBlocked(err))
	assert.EqualValues(t, 0, hits.Load(), "blocked fetch must not touch the network")
}

func TestFetcher_Fetch_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, "late")
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{Timeout: 50 * time.Millisecond}, allowAll(), nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchTimeout(err), "got %v", err)
}

func TestFetcher_Fetch_ContextDeadline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, "late")
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{}, allowAll(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchTimeout(err), "got %v", err)
}

func TestFetcher_Fetch_FollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>landed</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetch.New(fetch.Config{}, allowAll(), nil)
	page, err := f.Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/b", page.FinalURL)
	assert.Contains(t, page.HTML, "landed")
}

func TestFetcher_Fetch_BlockedRedirectTarget(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/internal-admin", http.StatusFound)
	})
	mux.HandleFunc("/internal-admin", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "secret")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetch.New(fetch.Config{}, blockSubstr{marker: "internal-admin"}, nil)
	_, err := f.Fetch(context.Background(), srv.URL+"/a")
	require.Error(t, err)
	assert.True(t, apperrors.IsSSRFBlocked(err), "got %v", err)
}

func TestFetcher_Fetch_TooManyRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetch.New(fetch.Config{MaxRedirects: 3}, allowAll(), nil)
	_, err := f.Fetch(context.Background(), srv.URL+"/loop")
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchFailed(err))
}

func TestFetcher_Fetch_CacheHitSkipsNetwork(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<html><body>cached page</body></html>")
	}))
	defer srv.Close()

	cache := &fakeCache{}
	f := fetch.New(fetch.Config{}, allowAll(), nil, fetch.WithCache(cache, time.Minute))

	first, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, cache.sets)

	second, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.HTML, second.HTML)
	assert.EqualValues(t, 1, hits.Load(), "cache hit must not refetch")
}

func TestFetcher_Fetch_CacheErrorFallsThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>live</body></html>")
	}))
	defer srv.Close()

	cache := &fakeCache{getErr: fmt.Errorf("redis down")}
	f := fetch.New(fetch.Config{}, allowAll(), nil, fetch.WithCache(cache, time.Minute))

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err, "cache failure must not fail the fetch")
	assert.Contains(t, page.HTML, "live")
}
