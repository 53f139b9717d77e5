package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"teralink/cache"
	"teralink/internal"
	"teralink/resolver"
	"teralink/server"
	"teralink/utils"
)

var (
	configPath  string
	cookiesPath string
	cookieValue string
	proxyURL    string
	debug       bool
	logLevel    string
	logFile     string
	timeout     time.Duration
	retries     int
	config      *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "teralink",
	Short:   "Resolve TeraBox share links into direct download URLs",
	Version: server.Version,
	Long: `teralink turns a TeraBox share link into the list of files it contains,
each with a direct download URL. It runs as an HTTP service or as a one-shot CLI.

Examples:
  teralink serve --listen :3000
  teralink resolve https://terabox.com/s/1AbC123
  teralink resolve --json --cookies cookies.txt https://www.1024tera.com/sharing/link?surl=AbC123

Environment Variables:
  TERALINK_LISTEN        Listen address for serve
  TERALINK_TIMEOUT       Per-request upstream timeout (e.g. 30s)
  TERALINK_MAX_RETRIES   Attempts per upstream call
  TERALINK_COOKIES       Cookie set, e.g. "ndus=...;lang=en"
  TERALINK_COOKIE_FILE   Path to a Netscape cookie file
  TERALINK_PROXY         Proxy URL
  TERALINK_CACHE_TTL     Result cache lifetime, 0 disables it`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(cmd); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		internal.LogDebug("Configuration loaded: timeout=%v, retries=%d, workers=%d, cache_ttl=%v",
			config.RequestTimeout, config.MaxRetries, config.ResolveWorkers, config.CacheTTL)
		return nil
	},
}

// loadConfiguration layers defaults, file, environment and finally explicit flags
func loadConfiguration(cmd *cobra.Command) error {
	loaded, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	config = loaded

	flags := cmd.Flags()
	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if quiet {
		config.QuietMode = true
	}
	if flags.Changed("log-level") {
		config.LogLevel = logLevel
	}
	if flags.Changed("log-file") {
		config.LogFile = logFile
	}
	if flags.Changed("proxy") {
		config.ProxyURL = proxyURL
	}
	if flags.Changed("cookies") {
		config.CookieFile = cookiesPath
	}
	if flags.Changed("cookie") {
		if config.Cookies == nil {
			config.Cookies = make(internal.CookieSet)
		}
		for name, value := range internal.ParseCookieString(cookieValue) {
			config.Cookies[name] = value
		}
	}
	if flags.Changed("timeout") {
		config.RequestTimeout = timeout
	}
	if flags.Changed("retries") {
		config.MaxRetries = retries
	}

	return config.ValidateConfig()
}

// buildResolver assembles the resolution pipeline from the loaded configuration
func buildResolver() (*resolver.TeraboxResolver, error) {
	httpClient, err := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:    config.RequestTimeout,
		ProxyURL:   config.ProxyURL,
		UserAgents: config.UserAgentList,
	})
	if err != nil {
		proxyErr := internal.NewValidationErrorWithValue("proxy", err.Error(), config.ProxyURL).
			WithSuggestion("Use formats like http://proxy:8080 or socks5://proxy:1080")
		internal.LogValidationError(proxyErr)
		return nil, proxyErr
	}

	credentials, err := resolver.NewCredentialProvider(config)
	if err != nil {
		return nil, err
	}

	return resolver.NewTeraboxResolver(config, httpClient, credentials, cache.NewMemoryCache(config.CacheShards)), nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaults := internal.DefaultConfig()

	rootCmd.AddCommand(serveCmd, resolveCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file with rotation")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS5 proxy URL (env: TERALINK_PROXY)")
	rootCmd.PersistentFlags().StringVarP(&cookiesPath, "cookies", "c", "", "Path to Netscape-format cookie file (env: TERALINK_COOKIE_FILE)")
	rootCmd.PersistentFlags().StringVar(&cookieValue, "cookie", "", `Cookie string ("ndus=...; lang=en") or a bare ndus value`)
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaults.RequestTimeout, "Per-request upstream timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", defaults.MaxRetries, "Attempts per upstream call (1-10)")
}
