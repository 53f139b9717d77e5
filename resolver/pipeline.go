package resolver

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"teralink/cache"
	"teralink/internal"
	"teralink/utils"
)

// ProgressFunc is called after each file's direct link attempt finishes
type ProgressFunc func(done, total int)

// TeraboxResolver implements the LinkResolver interface
type TeraboxResolver struct {
	config       *internal.Config
	httpClient   *utils.HTTPClient
	executor     *utils.Executor
	urlValidator *utils.URLValidator
	credentials  internal.CredentialProvider
	results      internal.ResultCache
	listing      *ListingClient
	redirects    *RedirectResolver
}

var _ internal.LinkResolver = (*TeraboxResolver)(nil)

// NewTeraboxResolver wires the resolution stages together. A nil resultCache disables caching.
func NewTeraboxResolver(config *internal.Config, httpClient *utils.HTTPClient, credentials internal.CredentialProvider, resultCache internal.ResultCache) *TeraboxResolver {
	var limiter internal.RateLimiter
	if rl := utils.NewRequestLimiter(config.RequestsPerSecond, config.ResolveWorkers); rl != nil {
		limiter = rl
	}
	if resultCache == nil || config.CacheTTL <= 0 {
		resultCache = cache.Noop{}
	}

	executor := utils.NewExecutor(utils.RetryConfigFromConfig(config), limiter)

	return &TeraboxResolver{
		config:       config,
		httpClient:   httpClient,
		executor:     executor,
		urlValidator: utils.NewURLValidator(config.AllowedDomains),
		credentials:  credentials,
		results:      resultCache,
		listing:      NewListingClient(httpClient, executor, config.Upstream),
		redirects:    NewRedirectResolver(httpClient, executor),
	}
}

// Resolve turns a share URL into its files with direct links
func (r *TeraboxResolver) Resolve(ctx context.Context, rawURL string) (*internal.ResolveResult, error) {
	return r.ResolveWithProgress(ctx, rawURL, nil)
}

// ResolveWithProgress is Resolve with a callback fired as direct links complete
func (r *TeraboxResolver) ResolveWithProgress(ctx context.Context, rawURL string, progress ProgressFunc) (*internal.ResolveResult, error) {
	start := time.Now()

	ref, err := r.urlValidator.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	if files, ok := r.results.Get(ref.NormalizedKey); ok {
		internal.LogDebug("Cache hit for %s", ref.NormalizedKey)
		return &internal.ResolveResult{
			URL:            rawURL,
			Files:          files,
			Cached:         true,
			ProcessingTime: time.Since(start),
		}, nil
	}

	cookies, err := r.credentials.Cookies(ctx)
	if err != nil {
		return nil, internal.NewAuthRequiredError("could not load session cookies").WithCause(err)
	}

	page, err := r.fetchSharePage(ctx, rawURL, cookies)
	if err != nil {
		return nil, err
	}

	artifacts, err := ExtractTokens(string(page.Body))
	if err != nil {
		return nil, err
	}

	surl, err := utils.ExtractSurl(rawURL, page.FinalURL)
	if err != nil {
		return nil, err
	}
	internal.LogDebug("Share page resolved to %s (surl %s)", page.FinalURL, surl)

	entries, err := r.listing.ListShare(ctx, surl, artifacts, page.FinalURL, cookies)
	if err != nil {
		return nil, err
	}

	files := r.resolveAll(ctx, entries, cookies, progress)

	r.results.Put(ref.NormalizedKey, files, r.config.CacheTTL)

	result := &internal.ResolveResult{
		URL:            rawURL,
		Files:          files,
		ProcessingTime: time.Since(start),
	}
	internal.LogInfo("Resolved %d file(s) for %s in %v", result.Count(), ref.NormalizedKey, result.ProcessingTime.Round(time.Millisecond))
	return result, nil
}

// fetchSharePage loads the share page, following redirects, and keeps the final URL
func (r *TeraboxResolver) fetchSharePage(ctx context.Context, rawURL string, cookies []*http.Cookie) (*utils.Response, error) {
	var page *utils.Response
	err := r.executor.Do(ctx, "share page", func(ctx context.Context) error {
		resp, err := r.httpClient.Do(ctx, &utils.Request{
			Method:          http.MethodGet,
			URL:             rawURL,
			Headers:         utils.BrowserHeaders,
			Cookies:         cookies,
			FollowRedirects: true,
		})
		if err != nil {
			return err
		}
		if err := r.executor.CheckStatus(resp.StatusCode); err != nil {
			if te, ok := internal.AsTeraboxError(err); ok {
				te.WithURL(rawURL)
			}
			return err
		}
		page = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// resolveAll resolves direct links with at most ResolveWorkers in flight. Output
// order follows the listing. Files not finished when ResolveTimeout expires keep
// their indirect link and are marked partial.
func (r *TeraboxResolver) resolveAll(ctx context.Context, entries []internal.ShareEntry, cookies []*http.Cookie, progress ProgressFunc) []internal.ResolvedFile {
	files := make([]internal.ResolvedFile, len(entries))
	for i, entry := range entries {
		files[i] = newResolvedFile(entry)
	}

	fanCtx := ctx
	if r.config.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		fanCtx, cancel = context.WithTimeout(ctx, r.config.ResolveTimeout)
		defer cancel()
	}

	total := len(files)
	var done int64

	workers := r.config.ResolveWorkers
	if workers < 1 {
		workers = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range files {
		g.Go(func() error {
			direct, ok := r.redirects.ResolveDirect(fanCtx, files[i].DownloadURL, cookies)
			files[i].DirectURL = direct
			files[i].Partial = !ok

			n := atomic.AddInt64(&done, 1)
			if progress != nil {
				progress(int(n), total)
			}
			return nil
		})
	}
	_ = g.Wait()

	return files
}

// newResolvedFile converts a listing entry; DirectURL starts as the indirect link
func newResolvedFile(entry internal.ShareEntry) internal.ResolvedFile {
	thumbnails := make(map[string]string, len(entry.Thumbs))
	for k, v := range entry.Thumbs {
		thumbnails[k] = v
	}

	return internal.ResolvedFile{
		Filename:    entry.ServerFilename,
		Size:        utils.FormatSize(int64(entry.Size)),
		SizeBytes:   int64(entry.Size),
		DownloadURL: entry.Dlink,
		DirectURL:   entry.Dlink,
		Modified:    int64(entry.ServerMtime),
		Thumbnails:  thumbnails,
		MD5:         entry.MD5,
	}
}
