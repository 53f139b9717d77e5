package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"teralink/internal"
)

// URLValidator decides whether a submitted URL looks like a supported share link.
// It never performs network I/O.
type URLValidator struct {
	allowedDomains []string
	pathPatterns   []*regexp.Regexp
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NewURLValidator creates a validator for the given domains; subdomains are accepted too
func NewURLValidator(allowedDomains []string) *URLValidator {
	domains := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			domains = append(domains, d)
		}
	}

	patterns := []*regexp.Regexp{
		// Short link: /s/1AbC123
		regexp.MustCompile(`^/s/[A-Za-z0-9_-]+/?$`),
		// Canonical link: /sharing/link?surl=AbC123 or /sharing/link/AbC123
		regexp.MustCompile(`^/sharing/link(?:/[A-Za-z0-9_-]*)?/?$`),
	}

	return &URLValidator{
		allowedDomains: domains,
		pathPatterns:   patterns,
	}
}

// Validate reports whether rawURL is an accepted share link
func (v *URLValidator) Validate(rawURL string) bool {
	return v.ValidateURL(rawURL) == nil
}

// ValidateURL validates domain and path shape and explains a rejection
func (v *URLValidator) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return internal.NewInvalidURLError(rawURL, "URL cannot be empty")
	}

	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return internal.NewInvalidURLError(rawURL, fmt.Sprintf("invalid URL format: %v", err))
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return internal.NewInvalidURLError(rawURL, "URL must use http or https protocol")
	}

	host := strings.ToLower(parsedURL.Hostname())
	if !v.IsAllowedHost(host) {
		return internal.NewInvalidURLError(rawURL, fmt.Sprintf("unsupported domain: %s", host))
	}

	if identifierPattern.MatchString(parsedURL.Query().Get("surl")) {
		return nil
	}
	for _, pattern := range v.pathPatterns {
		if pattern.MatchString(parsedURL.Path) {
			return nil
		}
	}

	return internal.NewInvalidURLError(rawURL, "path must be /s/<id>, /sharing/link or carry a surl parameter")
}

// IsAllowedHost reports whether host equals or is a subdomain of an allowed domain
func (v *URLValidator) IsAllowedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, domain := range v.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// AllowedDomains returns the normalized allow-list
func (v *URLValidator) AllowedDomains() []string {
	out := make([]string, len(v.allowedDomains))
	copy(out, v.allowedDomains)
	return out
}

// ParseURL validates rawURL and returns a reference carrying its cache key.
// Surl is filled when it can be read from the URL itself.
func (v *URLValidator) ParseURL(rawURL string) (*internal.ShareReference, error) {
	if err := v.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	ref := &internal.ShareReference{
		RawURL:        rawURL,
		NormalizedKey: NormalizeURL(rawURL),
	}
	ref.Surl, _ = ExtractSurl(rawURL, "")
	return ref, nil
}

// NormalizeURL produces the cache key for a share link: https scheme, lowercase host
// without www, no trailing slash, sorted query and no fragment.
func NormalizeURL(rawURL string) string {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsedURL.Host == "" {
		return strings.TrimSpace(rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(parsedURL.Host), "www.")
	path := strings.TrimRight(parsedURL.Path, "/")

	normalized := "https://" + host + path
	if query := parsedURL.Query(); len(query) > 0 {
		normalized += "?" + query.Encode()
	}
	return normalized
}

// ExtractSurl derives the share identifier. The original URL is tried before the
// post-redirect URL, and for each the order is: surl query parameter, the segment
// after /s/, the segment after /sharing/link/.
func ExtractSurl(rawURL, resolvedURL string) (string, error) {
	for _, candidate := range []string{rawURL, resolvedURL} {
		if candidate == "" {
			continue
		}
		if surl := surlFromURL(candidate); surl != "" {
			return surl, nil
		}
	}
	return "", internal.NewInvalidShareError(rawURL)
}

func surlFromURL(rawURL string) string {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	if surl := parsedURL.Query().Get("surl"); identifierPattern.MatchString(surl) {
		return surl
	}
	if surl := segmentAfter(parsedURL.Path, "/s/"); surl != "" {
		return surl
	}
	return segmentAfter(parsedURL.Path, "/sharing/link/")
}

func segmentAfter(path, marker string) string {
	idx := strings.Index(path, marker)
	if idx < 0 {
		return ""
	}

	segment := path[idx+len(marker):]
	if end := strings.IndexByte(segment, '/'); end >= 0 {
		segment = segment[:end]
	}
	if !identifierPattern.MatchString(segment) {
		return ""
	}
	return segment
}
