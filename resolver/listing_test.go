package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teralink/internal"
	"teralink/utils"
)

type listServer struct {
	mu      sync.Mutex
	queries []url.Values
	referer []string
	respond func(call int, q url.Values) string
}

func (s *listServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/share/list" {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	s.queries = append(s.queries, r.URL.Query())
	s.referer = append(s.referer, r.Header.Get("Referer"))
	call := len(s.queries)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(s.respond(call, r.URL.Query())))
}

func (s *listServer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func newListingClient(t *testing.T, ls *listServer) *ListingClient {
	t.Helper()
	server := httptest.NewServer(ls)
	t.Cleanup(server.Close)

	config := testConfig(server.URL)
	return NewListingClient(utils.NewHTTPClient(), testExecutor(config), config.Upstream)
}

const referer = "https://www.terabox.com/sharing/link?surl=AbCdEf"

func TestListingClient_FileShare(t *testing.T) {
	ls := &listServer{respond: func(call int, q url.Values) string {
		return `{"errno":0,"list":[
			{"fs_id":1,"server_filename":"a.mp4","size":"2097152","isdir":0,"dlink":"https://d/1","server_mtime":1700000000},
			{"fs_id":2,"server_filename":"b.txt","size":10,"isdir":"0","dlink":"https://d/2"}
		]}`
	}}
	client := newListingClient(t, ls)

	entries, err := client.ListShare(context.Background(), "AbCdEf", testArtifacts(), referer, nil)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "a.mp4", entries[0].ServerFilename)
	assert.Equal(t, internal.FlexInt64(2097152), entries[0].Size)
	assert.Equal(t, 1, ls.calls())

	q := ls.queries[0]
	assert.Equal(t, "250528", q.Get("app_id"))
	assert.Equal(t, "1", q.Get("web"))
	assert.Equal(t, "dubox", q.Get("channel"))
	assert.Equal(t, "0", q.Get("clienttype"))
	assert.Equal(t, "JSTOKEN123", q.Get("jsToken"))
	assert.Equal(t, "4455667788", q.Get("dp-logid"))
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "20", q.Get("num"))
	assert.Equal(t, "time", q.Get("order"))
	assert.Equal(t, "1", q.Get("desc"))
	assert.Equal(t, "1", q.Get("root"))
	assert.Equal(t, "AbCdEf", q.Get("shorturl"))
	assert.Equal(t, referer, q.Get("site_referer"))
	assert.Equal(t, referer, ls.referer[0])
}

func TestListingClient_FolderShare(t *testing.T) {
	ls := &listServer{respond: func(call int, q url.Values) string {
		if call == 1 {
			return `{"errno":0,"list":[{"fs_id":9,"server_filename":"Season 1","path":"/Season 1","isdir":1}]}`
		}
		return `{"errno":0,"list":[
			{"fs_id":10,"server_filename":"e01.mkv","path":"/Season 1/e01.mkv","size":100,"isdir":0,"dlink":"https://d/10"},
			{"fs_id":11,"server_filename":"extras","path":"/Season 1/extras","isdir":1},
			{"fs_id":12,"server_filename":"e02.mkv","path":"/Season 1/e02.mkv","size":200,"isdir":0,"dlink":"https://d/12"}
		]}`
	}}
	client := newListingClient(t, ls)

	entries, err := client.ListShare(context.Background(), "AbCdEf", testArtifacts(), referer, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, ls.calls(), "exactly one expansion call")
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.False(t, e.IsDirectory())
	}
	assert.Equal(t, "e01.mkv", entries[0].ServerFilename)
	assert.Equal(t, "e02.mkv", entries[1].ServerFilename)

	q := ls.queries[1]
	assert.Equal(t, "/Season 1", q.Get("dir"))
	assert.Equal(t, "asc", q.Get("order"))
	assert.Equal(t, "name", q.Get("by"))
	assert.False(t, q.Has("desc"))
	assert.False(t, q.Has("root"))
}

func TestListingClient_NoFiles(t *testing.T) {
	tests := []struct {
		name      string
		responses []string
		calls     int
	}{
		{
			name:      "empty_listing",
			responses: []string{`{"errno":0,"list":[]}`},
			calls:     1,
		},
		{
			name:      "missing_list",
			responses: []string{`{"errno":0}`},
			calls:     1,
		},
		{
			name: "folder_with_only_subfolders",
			responses: []string{
				`{"errno":0,"list":[{"path":"/dir","isdir":1}]}`,
				`{"errno":0,"list":[{"path":"/dir/sub","isdir":1}]}`,
			},
			calls: 2,
		},
		{
			name:      "files_without_dlink",
			responses: []string{`{"errno":0,"list":[{"server_filename":"a","isdir":0}]}`},
			calls:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := &listServer{respond: func(call int, q url.Values) string {
				return tt.responses[call-1]
			}}
			client := newListingClient(t, ls)

			_, err := client.ListShare(context.Background(), "AbCdEf", testArtifacts(), referer, nil)
			assert.True(t, internal.IsType(err, internal.ErrNoFilesFound), "got %v", err)
			assert.Equal(t, tt.calls, ls.calls())
		})
	}
}

func TestListingClient_Errno(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected internal.ErrorType
		calls    int
	}{
		{"auth_required", `{"errno":-6,"errmsg":"need login"}`, internal.ErrAuthRequired, 1},
		{"verify_required", `{"errno":400141}`, internal.ErrAuthRequired, 1},
		{"share_missing", `{"errno":105}`, internal.ErrShareNotFound, 1},
		{"share_expired_string_errno", `{"errno":"-9"}`, internal.ErrShareNotFound, 1},
		{"throttled_exhausts_retries", `{"errno":9019}`, internal.ErrUpstreamUnavailable, 2},
		{"unknown_errno", `{"errno":31066}`, internal.ErrUpstreamRejected, 1},
		{"not_json", `<html>maintenance</html>`, internal.ErrInvalidResponse, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := &listServer{respond: func(int, url.Values) string { return tt.body }}
			client := newListingClient(t, ls)

			_, err := client.ListShare(context.Background(), "AbCdEf", testArtifacts(), referer, nil)
			require.Error(t, err)
			assert.True(t, internal.IsType(err, tt.expected), "got %v", err)
			assert.Equal(t, tt.calls, ls.calls())
		})
	}
}

func TestHandleAPIError_ShareMissing(t *testing.T) {
	tests := []struct {
		name    string
		errno   int
		errmsg  string
		message string
	}{
		{"upstream_message_kept", -9, "share expired", "share expired"},
		{"default_message", 105, "", "File not found or share link is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te, ok := internal.AsTeraboxError(handleAPIError(tt.errno, tt.errmsg))
			require.True(t, ok)
			assert.Equal(t, internal.ErrShareNotFound, te.Type)
			assert.Equal(t, tt.errno, te.Code)
			assert.Equal(t, tt.message, te.Message)
		})
	}
}

func TestListingClient_FolderListingFailure(t *testing.T) {
	ls := &listServer{respond: func(call int, q url.Values) string {
		if call == 1 {
			return `{"errno":0,"list":[{"path":"/dir","isdir":1}]}`
		}
		return `{"errno":-7}`
	}}
	client := newListingClient(t, ls)

	_, err := client.ListShare(context.Background(), "AbCdEf", testArtifacts(), referer, nil)
	require.Error(t, err)
	assert.True(t, internal.IsType(err, internal.ErrShareNotFound))
	assert.Contains(t, err.Error(), "listing folder /dir")
}
