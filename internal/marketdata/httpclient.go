package marketdata

import (
	"net/http"
	"time"
)

// defaultHTTPClient is shared by all providers: one timeout, one connection
// pool, regardless of how many vendor adapters are configured.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}
