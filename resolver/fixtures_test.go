package resolver

import (
	"time"

	"teralink/internal"
	"teralink/utils"
)

const sharePage = `<!DOCTYPE html>
<html><head>
<script>var templateData = {"jsToken":"%28function%28%29%7Bfn%28%22JSTOKEN123%22%29%7D%29"};</script>
<script src="/static/boot.js?dp-logid=4455667788&v=1"></script>
</head><body><div id="app"></div></body></html>`

func testConfig(upstream string) *internal.Config {
	config := internal.DefaultConfig()
	config.AllowedDomains = []string{"127.0.0.1"}
	config.Upstream.BaseURL = upstream
	config.RequestTimeout = 2 * time.Second
	config.MaxRetries = 2
	config.RetryBaseDelay = time.Millisecond
	config.RetryMaxDelay = 10 * time.Millisecond
	config.ResolveTimeout = 5 * time.Second
	config.Cookies = map[string]string{"ndus": "test-session", "lang": "en"}
	return config
}

func testExecutor(config *internal.Config) *utils.Executor {
	return utils.NewExecutor(utils.RetryConfigFromConfig(config), nil)
}

func testArtifacts() *internal.SessionArtifacts {
	return &internal.SessionArtifacts{JSToken: "JSTOKEN123", LogID: "4455667788"}
}
