package resolver

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"teralink/internal"
)

// StaticCredentials serves a fixed cookie set from configuration
type StaticCredentials struct {
	values map[string]string
}

// NewStaticCredentials copies values into a provider
func NewStaticCredentials(values map[string]string) *StaticCredentials {
	copied := make(map[string]string, len(values))
	for name, value := range values {
		copied[name] = value
	}
	return &StaticCredentials{values: copied}
}

// Cookies returns fresh cookie objects on each call
func (s *StaticCredentials) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return cookiesFromMap(s.values), nil
}

// CookieFileCredentials reads a Netscape-format cookie file and reloads it
// whenever the file's modification time changes.
type CookieFileCredentials struct {
	path     string
	defaults map[string]string

	mutex   sync.Mutex
	modTime time.Time
	cookies map[string]*http.Cookie
}

// NewCookieFileCredentials loads path once so a broken file fails at startup.
// defaults fill in names the file does not carry.
func NewCookieFileCredentials(path string, defaults map[string]string) (*CookieFileCredentials, error) {
	c := &CookieFileCredentials{
		path:     path,
		defaults: defaults,
	}
	if _, err := c.Cookies(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Cookies returns the current cookie set, reloading the file if it changed
func (c *CookieFileCredentials) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat cookie file: %w", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cookies == nil || !info.ModTime().Equal(c.modTime) {
		cookies, err := LoadNetscapeCookies(c.path)
		if err != nil {
			return nil, err
		}
		if err := ValidateSession(cookies); err != nil {
			internal.LogWarn("Cookie file %s: %v", c.path, err)
		}
		c.cookies = cookies
		c.modTime = info.ModTime()
		internal.LogDebug("Loaded %d cookies from %s", len(cookies), c.path)
	}

	merged := make(map[string]string, len(c.defaults)+len(c.cookies))
	for name, value := range c.defaults {
		merged[name] = value
	}
	now := time.Now()
	for name, cookie := range c.cookies {
		if !cookie.Expires.IsZero() && now.After(cookie.Expires) {
			continue
		}
		merged[name] = cookie.Value
	}
	return cookiesFromMap(merged), nil
}

// LoadNetscapeCookies parses a Netscape-format cookie file
func LoadNetscapeCookies(path string) (map[string]*http.Cookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer file.Close()

	cookies := make(map[string]*http.Cookie)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// curl and browser exports mark HttpOnly cookies with this prefix
		httpOnly := strings.HasPrefix(line, "#HttpOnly_")
		if httpOnly {
			line = strings.TrimPrefix(line, "#HttpOnly_")
		}

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cookie, err := parseNetscapeCookieLine(line)
		if err != nil {
			return nil, fmt.Errorf("invalid cookie format at line %d: %w", lineNum, err)
		}
		cookie.HttpOnly = httpOnly
		cookies[cookie.Name] = cookie
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cookie file: %w", err)
	}

	return cookies, nil
}

// parseNetscapeCookieLine parses a single line from Netscape cookie format
// Format: domain	flag	path	secure	expiration	name	value
func parseNetscapeCookieLine(line string) (*http.Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}

	var expires time.Time
	if fields[4] != "0" {
		timestamp, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration timestamp: %w", err)
		}
		expires = time.Unix(timestamp, 0)
	}

	return &http.Cookie{
		Name:    fields[5],
		Value:   fields[6],
		Domain:  fields[0],
		Path:    fields[2],
		Expires: expires,
		Secure:  fields[3] == "TRUE",
	}, nil
}

// ValidateSession checks that the session cookie is present and not expired
func ValidateSession(cookies map[string]*http.Cookie) error {
	session, ok := cookies[internal.SessionCookie]
	if !ok || session.Value == "" {
		return fmt.Errorf("%s cookie is missing; listing calls may be rejected", internal.SessionCookie)
	}
	if !session.Expires.IsZero() && time.Now().After(session.Expires) {
		return fmt.Errorf("%s cookie expired at %v", internal.SessionCookie, session.Expires)
	}
	return nil
}

// NewCredentialProvider picks the cookie file when one is configured, else the static map
func NewCredentialProvider(config *internal.Config) (internal.CredentialProvider, error) {
	if config.CookieFile != "" {
		return NewCookieFileCredentials(config.CookieFile, config.Cookies)
	}
	if config.Cookies[internal.SessionCookie] == "" {
		internal.LogWarn("No %s cookie configured; set TERALINK_COOKIES or --cookies", internal.SessionCookie)
	}
	return NewStaticCredentials(config.Cookies), nil
}

func cookiesFromMap(values map[string]string) []*http.Cookie {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{Name: name, Value: values[name]})
	}
	return cookies
}
