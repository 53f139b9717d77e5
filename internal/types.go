package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ShareReference identifies the share a request is about
type ShareReference struct {
	RawURL        string
	NormalizedKey string
	Surl          string
}

// SessionArtifacts are the page-load scoped values the listing API requires
type SessionArtifacts struct {
	JSToken string
	LogID   string
}

// SessionCookie is the cookie TeraBox uses to identify a logged-in browser
const SessionCookie = "ndus"

// CookieSet maps cookie names to values. From the environment it is read in
// header form, "ndus=...; lang=en", or as a bare session value.
type CookieSet map[string]string

// UnmarshalText replaces the set with the parsed cookie string
func (c *CookieSet) UnmarshalText(text []byte) error {
	*c = ParseCookieString(string(text))
	return nil
}

// ParseCookieString accepts "name=value; name2=value2" or a bare session value.
// A bare value is taken as ndus with lang=en.
func ParseCookieString(raw string) CookieSet {
	values := make(CookieSet)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return values
	}

	if !strings.Contains(raw, "=") {
		values[SessionCookie] = raw
		values["lang"] = "en"
		return values
	}

	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		values[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return values
}

// FlexInt64 decodes integers the upstream sends either as JSON numbers or as strings
type FlexInt64 int64

// UnmarshalJSON accepts 12, "12", 12.0, "" and null
func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("cannot decode %q as integer", s)
		}
		n = int64(fl)
	}
	*f = FlexInt64(n)
	return nil
}

// ShareEntry is one record of the share listing response
type ShareEntry struct {
	FsID           FlexInt64         `json:"fs_id"`
	ServerFilename string            `json:"server_filename"`
	Path           string            `json:"path"`
	Size           FlexInt64         `json:"size"`
	IsDir          FlexInt64         `json:"isdir"`
	Category       FlexInt64         `json:"category"`
	Dlink          string            `json:"dlink"`
	MD5            string            `json:"md5,omitempty"`
	ServerMtime    FlexInt64         `json:"server_mtime"`
	Thumbs         map[string]string `json:"thumbs,omitempty"`
}

// IsDirectory reports whether the entry is a folder
func (e ShareEntry) IsDirectory() bool {
	return e.IsDir == 1
}

// ResolvedFile is a leaf entry with its direct link, as returned to callers
type ResolvedFile struct {
	Filename    string            `json:"filename"`
	Size        string            `json:"size"`
	SizeBytes   int64             `json:"size_bytes"`
	DownloadURL string            `json:"download_url"`
	DirectURL   string            `json:"direct_url"`
	Modified    int64             `json:"modified"`
	Thumbnails  map[string]string `json:"thumbnails"`
	MD5         string            `json:"md5,omitempty"`

	// Partial is set when redirect resolution failed and DirectURL is the indirect link
	Partial bool `json:"partial,omitempty"`
}

// ResolveResult is the outcome of one resolution request
type ResolveResult struct {
	URL            string
	Files          []ResolvedFile
	Cached         bool
	ProcessingTime time.Duration
}

// Count returns the number of resolved files
func (r *ResolveResult) Count() int {
	return len(r.Files)
}

// PartialCount returns how many files fell back to their indirect link
func (r *ResolveResult) PartialCount() int {
	n := 0
	for _, f := range r.Files {
		if f.Partial {
			n++
		}
	}
	return n
}
