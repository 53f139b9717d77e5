package internal

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by LoadFromEnv
const EnvPrefix = "TERALINK_"

// UpstreamConfig holds the observed constants of the share listing API.
// They are reproduced from browser traffic and must stay overridable.
type UpstreamConfig struct {
	BaseURL    string `yaml:"base_url" env:"BASE_URL"`
	ListPath   string `yaml:"list_path" env:"LIST_PATH"`
	AppID      string `yaml:"app_id" env:"APP_ID"`
	Channel    string `yaml:"channel" env:"CHANNEL"`
	ClientType string `yaml:"client_type" env:"CLIENT_TYPE"`
	Web        string `yaml:"web" env:"WEB"`
	PageSize   int    `yaml:"page_size" env:"PAGE_SIZE"`
	LogIDParam string `yaml:"logid_param" env:"LOGID_PARAM"`
}

// Config holds application configuration
type Config struct {
	Listen string `yaml:"listen" env:"LISTEN"`

	// Upstream negotiation
	RequestTimeout    time.Duration     `yaml:"request_timeout" env:"TIMEOUT"`
	MaxRetries        int               `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBaseDelay    time.Duration     `yaml:"retry_base_delay" env:"RETRY_DELAY"`
	RetryMaxDelay     time.Duration     `yaml:"retry_max_delay" env:"RETRY_MAX_DELAY"`
	RetryStatusCodes  []int             `yaml:"retry_status_codes" env:"RETRY_STATUS_CODES"`
	RequestsPerSecond float64           `yaml:"requests_per_second" env:"RPS"`
	ProxyURL          string            `yaml:"proxy" env:"PROXY"`
	UserAgentList     []string          `yaml:"user_agents" env:"USER_AGENTS" envSeparator:"|"`
	AllowedDomains    []string          `yaml:"allowed_domains" env:"ALLOWED_DOMAINS"`
	Upstream          UpstreamConfig    `yaml:"upstream" envPrefix:"UPSTREAM_"`
	Cookies           CookieSet         `yaml:"cookies" env:"COOKIES"`
	CookieFile        string            `yaml:"cookie_file" env:"COOKIE_FILE"`

	// Fan-out and caching
	ResolveWorkers int           `yaml:"resolve_workers" env:"WORKERS"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout" env:"RESOLVE_TIMEOUT"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	CacheShards    int           `yaml:"cache_shards" env:"CACHE_SHARDS"`
	NotFoundStatus int           `yaml:"not_found_status" env:"NOT_FOUND_STATUS"`

	// Logging configuration
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat   string `yaml:"log_format" env:"LOG_FORMAT"`
	EnableDebug bool   `yaml:"debug" env:"DEBUG"`
	QuietMode   bool   `yaml:"quiet" env:"QUIET"`
	LogFile     string `yaml:"log_file" env:"LOG_FILE"`
}

// DefaultUpstreamConfig returns the parameter set observed on terabox.com
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		BaseURL:    "https://www.terabox.com",
		ListPath:   "/share/list",
		AppID:      "250528",
		Channel:    "dubox",
		ClientType: "0",
		Web:        "1",
		PageSize:   20,
		LogIDParam: "dp-logid",
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Listen:            ":3000",
		RequestTimeout:    30 * time.Second,
		MaxRetries:        3,
		RetryBaseDelay:    2 * time.Second,
		RetryMaxDelay:     30 * time.Second,
		RetryStatusCodes:  []int{403, 429, 500, 502, 503, 504, 509},
		RequestsPerSecond: 0,
		UserAgentList: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
		},
		AllowedDomains: []string{
			"terabox.com",
			"teraboxapp.com",
			"terabox.app",
			"1024terabox.com",
			"1024tera.com",
			"teraboxlink.com",
			"terasharelink.com",
			"freeterabox.com",
			"4funbox.com",
			"mirrobox.com",
			"nephobox.com",
			"momerybox.com",
			"tibibox.com",
		},
		Upstream: DefaultUpstreamConfig(),
		Cookies: CookieSet{
			"PANWEB": "1",
			"lang":   "en",
		},

		ResolveWorkers: 8,
		ResolveTimeout: 45 * time.Second,
		CacheTTL:       5 * time.Minute,
		CacheShards:    64,
		NotFoundStatus: 404,

		// Logging defaults
		LogLevel:    "info",
		LogFormat:   "text",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "", // Empty means stderr
	}
}

// LoadConfig builds a configuration from defaults, an optional YAML file and the environment
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()

	if path != "" {
		if err := c.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := c.LoadFromEnv(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFromFile overlays values from a YAML file; keys absent from the file keep their value
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewValidationErrorWithValue("config", "failed to read config file", path).
			WithContext("error", err.Error())
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return NewValidationErrorWithValue("config", fmt.Sprintf("invalid YAML: %v", err), path).
			WithSuggestion("Check indentation and that durations are written like 30s or 5m")
	}

	return nil
}

// LoadFromEnv loads configuration from TERALINK_* environment variables
func (c *Config) LoadFromEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return NewValidationError("env", err.Error()).
			WithSuggestion("Durations use Go syntax (30s, 5m); cookies use name=value;name2=value2")
	}
	return nil
}

// ValidateConfig validates the configuration values
func (c *Config) ValidateConfig() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout: %v (must be > 0)", c.RequestTimeout)
	}

	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("invalid max retries: %d (must be 1-10)", c.MaxRetries)
	}

	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("invalid retry base delay: %v (must be >= 0)", c.RetryBaseDelay)
	}

	if c.ResolveWorkers < 1 || c.ResolveWorkers > 64 {
		return fmt.Errorf("invalid resolve workers: %d (must be 1-64)", c.ResolveWorkers)
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid requests per second: %v (must be >= 0)", c.RequestsPerSecond)
	}

	if len(c.UserAgentList) == 0 {
		return fmt.Errorf("user agent list cannot be empty")
	}

	if len(c.AllowedDomains) == 0 {
		return fmt.Errorf("allowed domains list cannot be empty")
	}

	if c.Upstream.BaseURL == "" || c.Upstream.ListPath == "" {
		return fmt.Errorf("upstream base url and list path are required")
	}

	if c.Upstream.PageSize < 1 || c.Upstream.PageSize > 1000 {
		return fmt.Errorf("invalid upstream page size: %d (must be 1-1000)", c.Upstream.PageSize)
	}

	if c.NotFoundStatus != 404 && c.NotFoundStatus != 500 {
		return fmt.Errorf("invalid not found status: %d (must be 404 or 500)", c.NotFoundStatus)
	}

	return nil
}
