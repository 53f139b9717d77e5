package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teralink/cache"
	"teralink/internal"
	"teralink/utils"
)

// fakeTerabox mimics the share page, listing endpoint and dlink hosts
type fakeTerabox struct {
	server     *httptest.Server
	page       string
	listBody   func(base string) string
	dlink      http.HandlerFunc
	pageHits   int32
	listHits   int32
	lastCookie atomic.Value
}

func newFakeTerabox(t *testing.T) *fakeTerabox {
	t.Helper()
	f := &fakeTerabox{page: sharePage}

	mux := http.NewServeMux()
	mux.HandleFunc("/s/", func(w http.ResponseWriter, r *http.Request) {
		surl := strings.TrimPrefix(r.URL.Path, "/s/1")
		http.Redirect(w, r, "/sharing/link?surl="+surl, http.StatusFound)
	})
	mux.HandleFunc("/sharing/link", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.pageHits, 1)
		if c, err := r.Cookie("ndus"); err == nil {
			f.lastCookie.Store(c.Value)
		}
		w.Write([]byte(f.page))
	})
	mux.HandleFunc("/share/list", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.listHits, 1)
		if r.URL.Query().Get("jsToken") != "JSTOKEN123" || r.Header.Get("Referer") == "" {
			w.Write([]byte(`{"errno":-6,"errmsg":"bad token"}`))
			return
		}
		w.Write([]byte(f.listBody(f.server.URL)))
	})
	mux.HandleFunc("/file/", func(w http.ResponseWriter, r *http.Request) {
		f.dlink(w, r)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.listBody = func(base string) string {
		return fmt.Sprintf(`{"errno":0,"list":[
			{"fs_id":1,"server_filename":"movie.mp4","size":2097152,"isdir":0,"dlink":"%[1]s/file/1","server_mtime":1700000000,"md5":"abc","thumbs":{"url1":"https://t/1.jpg"}},
			{"fs_id":2,"server_filename":"notes.txt","size":0,"isdir":0,"dlink":"%[1]s/file/2","server_mtime":1700000001}
		]}`, base)
	}
	f.dlink = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/file/1" {
			w.Header().Set("Location", "https://cdn.example.com/movie.mp4")
			w.WriteHeader(http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}
	return f
}

func (f *fakeTerabox) shareURL() string {
	return f.server.URL + "/s/1AbCdEf"
}

func newTestResolver(t *testing.T, f *fakeTerabox, mutate func(c *internal.Config)) *TeraboxResolver {
	t.Helper()
	config := testConfig(f.server.URL)
	if mutate != nil {
		mutate(config)
	}
	credentials := NewStaticCredentials(config.Cookies)
	return NewTeraboxResolver(config, utils.NewHTTPClient(), credentials, cache.NewMemoryCache(4))
}

func TestTeraboxResolver_Resolve(t *testing.T) {
	f := newFakeTerabox(t)
	r := newTestResolver(t, f, nil)

	result, err := r.Resolve(context.Background(), f.shareURL())
	require.NoError(t, err)

	assert.Equal(t, f.shareURL(), result.URL)
	assert.False(t, result.Cached)
	require.Equal(t, 2, result.Count())

	movie := result.Files[0]
	assert.Equal(t, "movie.mp4", movie.Filename)
	assert.Equal(t, "2.00 MB", movie.Size)
	assert.Equal(t, int64(2097152), movie.SizeBytes)
	assert.Equal(t, f.server.URL+"/file/1", movie.DownloadURL)
	assert.Equal(t, "https://cdn.example.com/movie.mp4", movie.DirectURL)
	assert.Equal(t, int64(1700000000), movie.Modified)
	assert.Equal(t, "https://t/1.jpg", movie.Thumbnails["url1"])
	assert.Equal(t, "abc", movie.MD5)
	assert.False(t, movie.Partial)

	notes := result.Files[1]
	assert.Equal(t, "notes.txt", notes.Filename)
	assert.Equal(t, "0.00 B", notes.Size)
	assert.Equal(t, notes.DownloadURL, notes.DirectURL)
	assert.True(t, notes.Partial)
	assert.NotNil(t, notes.Thumbnails)

	assert.Equal(t, 1, result.PartialCount())
	assert.Equal(t, "test-session", f.lastCookie.Load())
}

func TestTeraboxResolver_CacheHit(t *testing.T) {
	f := newFakeTerabox(t)
	r := newTestResolver(t, f, nil)

	first, err := r.Resolve(context.Background(), f.shareURL())
	require.NoError(t, err)

	// same share, different spelling
	second, err := r.Resolve(context.Background(), f.shareURL()+"/")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Files, second.Files)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.pageHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.listHits))
}

func TestTeraboxResolver_CacheDisabled(t *testing.T) {
	f := newFakeTerabox(t)
	r := newTestResolver(t, f, func(c *internal.Config) { c.CacheTTL = 0 })

	for i := 0; i < 2; i++ {
		result, err := r.Resolve(context.Background(), f.shareURL())
		require.NoError(t, err)
		assert.False(t, result.Cached)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.listHits))
}

func TestTeraboxResolver_Errors(t *testing.T) {
	tests := []struct {
		name     string
		url      func(f *fakeTerabox) string
		setup    func(f *fakeTerabox)
		expected internal.ErrorType
		noIO     bool
	}{
		{
			name:     "unsupported_domain",
			url:      func(f *fakeTerabox) string { return "https://example.com/s/1AbCdEf" },
			expected: internal.ErrInvalidURL,
			noIO:     true,
		},
		{
			name:     "missing_tokens",
			setup:    func(f *fakeTerabox) { f.page = "<html><body>login</body></html>" },
			expected: internal.ErrTokenExtractionFailed,
		},
		{
			name: "empty_share",
			setup: func(f *fakeTerabox) {
				f.listBody = func(string) string { return `{"errno":0,"list":[]}` }
			},
			expected: internal.ErrNoFilesFound,
		},
		{
			name: "throttled_listing",
			setup: func(f *fakeTerabox) {
				f.listBody = func(string) string { return `{"errno":9019,"errmsg":"too fast"}` }
			},
			expected: internal.ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeTerabox(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			r := newTestResolver(t, f, nil)

			rawURL := f.shareURL()
			if tt.url != nil {
				rawURL = tt.url(f)
			}

			_, err := r.Resolve(context.Background(), rawURL)
			require.Error(t, err)
			assert.True(t, internal.IsType(err, tt.expected), "got %v", err)
			if tt.noIO {
				assert.Equal(t, int32(0), atomic.LoadInt32(&f.pageHits))
			}
		})
	}
}

type failingCredentials struct{}

func (failingCredentials) Cookies(context.Context) ([]*http.Cookie, error) {
	return nil, errors.New("cookie file unreadable")
}

func TestTeraboxResolver_CredentialFailure(t *testing.T) {
	f := newFakeTerabox(t)
	config := testConfig(f.server.URL)
	r := NewTeraboxResolver(config, utils.NewHTTPClient(), failingCredentials{}, nil)

	_, err := r.Resolve(context.Background(), f.shareURL())
	assert.True(t, internal.IsType(err, internal.ErrAuthRequired))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.pageHits))
}

func TestTeraboxResolver_BoundedFanOut(t *testing.T) {
	f := newFakeTerabox(t)
	const fileCount = 6

	f.listBody = func(base string) string {
		entries := make([]string, fileCount)
		for i := range entries {
			entries[i] = fmt.Sprintf(`{"server_filename":"f%d","isdir":0,"size":1,"dlink":"%s/file/%d"}`, i, base, i)
		}
		return `{"errno":0,"list":[` + strings.Join(entries, ",") + `]}`
	}

	var inFlight, peak int32
	f.dlink = func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Header().Set("Location", "https://cdn.example.com"+r.URL.Path)
		w.WriteHeader(http.StatusFound)
	}

	r := newTestResolver(t, f, func(c *internal.Config) { c.ResolveWorkers = 2 })

	var (
		mu       sync.Mutex
		reported []int
	)
	result, err := r.ResolveWithProgress(context.Background(), f.shareURL(), func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, fileCount, total)
		reported = append(reported, done)
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	require.Len(t, result.Files, fileCount)
	for i, file := range result.Files {
		assert.Equal(t, fmt.Sprintf("f%d", i), file.Filename, "listing order kept")
		assert.Equal(t, fmt.Sprintf("https://cdn.example.com/file/%d", i), file.DirectURL)
	}
	assert.Len(t, reported, fileCount)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, reported)
}

func TestTeraboxResolver_ResolveTimeoutDegrades(t *testing.T) {
	f := newFakeTerabox(t)
	f.dlink = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}

	r := newTestResolver(t, f, func(c *internal.Config) { c.ResolveTimeout = 50 * time.Millisecond })

	start := time.Now()
	result, err := r.Resolve(context.Background(), f.shareURL())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	for _, file := range result.Files {
		assert.True(t, file.Partial)
		assert.Equal(t, file.DownloadURL, file.DirectURL)
	}
}
