package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"teralink/internal"
	"teralink/utils"
)

// errMethodRejected marks a 405/501 answer, which is retried with GET
var errMethodRejected = errors.New("upstream rejected request method")

// RedirectResolver turns an indirect dlink into the URL it redirects to
type RedirectResolver struct {
	httpClient *utils.HTTPClient
	executor   *utils.Executor
}

// NewRedirectResolver creates a redirect resolver
func NewRedirectResolver(httpClient *utils.HTTPClient, executor *utils.Executor) *RedirectResolver {
	return &RedirectResolver{
		httpClient: httpClient,
		executor:   executor,
	}
}

// ResolveDirect follows exactly one redirect hop from dlink. It never fails: when
// the hop cannot be read, dlink is returned with ok=false. A response without a
// redirect returns dlink with ok=true.
func (r *RedirectResolver) ResolveDirect(ctx context.Context, dlink string, cookies []*http.Cookie) (string, bool) {
	location, err := r.locate(ctx, http.MethodHead, dlink, cookies)
	if errors.Is(err, errMethodRejected) {
		internal.LogDebug("HEAD rejected for dlink, retrying with GET")
		location, err = r.locate(ctx, http.MethodGet, dlink, cookies)
	}
	if err != nil {
		internal.LogWarn("Direct link resolution failed, keeping indirect link: %v", err)
		return dlink, false
	}

	if location == "" {
		return dlink, true
	}
	return location, true
}

func (r *RedirectResolver) locate(ctx context.Context, method, dlink string, cookies []*http.Cookie) (string, error) {
	headers := map[string]string{"Accept": "*/*"}
	if method == http.MethodGet {
		// keep the GET from pulling the whole file when there is no redirect
		headers["Range"] = "bytes=0-0"
	}

	var location string
	err := r.executor.Do(ctx, "resolve "+method, func(ctx context.Context) error {
		resp, err := r.httpClient.Do(ctx, &utils.Request{
			Method:  method,
			URL:     dlink,
			Headers: headers,
			Cookies: cookies,
			NoBody:  true,
		})
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
			return errMethodRejected
		}
		if err := r.executor.CheckStatus(resp.StatusCode); err != nil {
			return err
		}

		location = ""
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location = resolveLocation(dlink, resp.Header.Get("Location"))
		}
		return nil
	})
	return location, err
}

// resolveLocation makes a relative Location absolute against the request URL
func resolveLocation(base, location string) string {
	if location == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return location
	}
	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	return baseURL.ResolveReference(ref).String()
}
