package resolver

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"teralink/internal"
	"teralink/utils"
)

// listResponse is the share/list payload
type listResponse struct {
	Errno  internal.FlexInt64    `json:"errno"`
	Errmsg string                `json:"errmsg"`
	List   []internal.ShareEntry `json:"list"`
}

// ListingClient calls the share listing endpoint
type ListingClient struct {
	httpClient *utils.HTTPClient
	executor   *utils.Executor
	upstream   internal.UpstreamConfig
}

// NewListingClient creates a listing client for the given upstream constants
func NewListingClient(httpClient *utils.HTTPClient, executor *utils.Executor, upstream internal.UpstreamConfig) *ListingClient {
	return &ListingClient{
		httpClient: httpClient,
		executor:   executor,
		upstream:   upstream,
	}
}

// ListShare returns the leaf files of a share. When the first top-level entry is a
// folder, its contents are listed once more and become the file set; folders found
// at that level are dropped, not walked.
func (l *ListingClient) ListShare(ctx context.Context, surl string, artifacts *internal.SessionArtifacts, refererURL string, cookies []*http.Cookie) ([]internal.ShareEntry, error) {
	params := l.baseParams(surl, artifacts, refererURL)
	params["order"] = "time"
	params["desc"] = "1"
	params["root"] = "1"

	entries, err := l.list(ctx, params, refererURL, cookies)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, internal.NewNoFilesFoundError(surl)
	}

	if entries[0].IsDirectory() {
		dir := entries[0].Path
		internal.LogDebug("Share %s is a folder share, listing %s", surl, dir)

		params = l.baseParams(surl, artifacts, refererURL)
		params["dir"] = dir
		params["order"] = "asc"
		params["by"] = "name"

		entries, err = l.list(ctx, params, refererURL, cookies)
		if err != nil {
			return nil, errors.WithMessagef(err, "listing folder %s", dir)
		}
	}

	leaves := make([]internal.ShareEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDirectory() {
			continue
		}
		if entry.Dlink == "" {
			internal.LogDebug("Skipping %s: no dlink in listing", entry.ServerFilename)
			continue
		}
		leaves = append(leaves, entry)
	}

	if len(leaves) == 0 {
		return nil, internal.NewNoFilesFoundError(surl)
	}
	return leaves, nil
}

func (l *ListingClient) baseParams(surl string, artifacts *internal.SessionArtifacts, refererURL string) map[string]string {
	params := map[string]string{
		"app_id":       l.upstream.AppID,
		"web":          l.upstream.Web,
		"channel":      l.upstream.Channel,
		"clienttype":   l.upstream.ClientType,
		"jsToken":      artifacts.JSToken,
		"page":         "1",
		"num":          strconv.Itoa(l.upstream.PageSize),
		"site_referer": refererURL,
		"shorturl":     surl,
	}
	params[l.upstream.LogIDParam] = artifacts.LogID
	return params
}

func (l *ListingClient) endpoint() string {
	return strings.TrimRight(l.upstream.BaseURL, "/") + "/" + strings.TrimLeft(l.upstream.ListPath, "/")
}

func (l *ListingClient) list(ctx context.Context, params map[string]string, refererURL string, cookies []*http.Cookie) ([]internal.ShareEntry, error) {
	headers := make(map[string]string, len(utils.APIHeaders)+2)
	for k, v := range utils.APIHeaders {
		headers[k] = v
	}
	headers["Referer"] = refererURL
	headers["Origin"] = strings.TrimRight(l.upstream.BaseURL, "/")

	var payload listResponse
	err := l.executor.Do(ctx, "share list", func(ctx context.Context) error {
		resp, err := l.httpClient.Do(ctx, &utils.Request{
			Method:          http.MethodGet,
			URL:             l.endpoint(),
			Query:           params,
			Headers:         headers,
			Cookies:         cookies,
			FollowRedirects: true,
		})
		if err != nil {
			return err
		}
		if err := l.executor.CheckStatus(resp.StatusCode); err != nil {
			return err
		}

		payload = listResponse{}
		if err := utils.DecodeJSON(resp.Body, &payload); err != nil {
			return internal.NewTeraboxError(resp.StatusCode, "listing response is not valid JSON", internal.ErrInvalidResponse).
				WithCause(err)
		}
		return handleAPIError(int(payload.Errno), payload.Errmsg)
	})
	if err != nil {
		return nil, err
	}

	return payload.List, nil
}

// handleAPIError maps a listing errno onto an error kind; 0 means success
func handleAPIError(errno int, errmsg string) error {
	if errno == 0 {
		return nil
	}

	if isShareMissing(errno) {
		return internal.NewShareNotFoundError(errno, errmsg)
	}

	message := errmsg
	if message == "" {
		message = "listing rejected"
	}

	switch errno {
	case -6, 400141, 4000020:
		return internal.NewAuthRequiredError(message).WithContext("errno", errno)
	case -62, 9013, 9019, 31034:
		return internal.NewTeraboxError(errno, message, internal.ErrRateLimit)
	default:
		return internal.NewTeraboxError(errno, message, internal.ErrUpstreamRejected)
	}
}

func isShareMissing(errno int) bool {
	switch errno {
	case -7, -9, 2, 105, 113, 115, 145:
		return true
	}
	return false
}
