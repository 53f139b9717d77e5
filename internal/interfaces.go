package internal

import (
	"context"
	"net/http"
	"time"
)

// LinkResolver turns a share URL into resolved file entries
type LinkResolver interface {
	Resolve(ctx context.Context, rawURL string) (*ResolveResult, error)
}

// CredentialProvider supplies the cookie set sent to the upstream service
type CredentialProvider interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// ResultCache stores resolved file sets keyed by normalized share URL
type ResultCache interface {
	Get(key string) ([]ResolvedFile, bool)
	Put(key string, files []ResolvedFile, ttl time.Duration)
}

// RateLimiter gates outbound upstream requests
type RateLimiter interface {
	Wait(ctx context.Context) error
}
