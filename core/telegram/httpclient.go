package telegram

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 5 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
)

// BuildHTTPClient returns an HTTP client for Bot API calls. pollTimeout is the
// long polling window; getUpdates holds the response that long, so the header
// and overall timeouts are stretched past it.
//
// The client never repeats a request. Outbound sends are retried by the sender
// queue, and only for failures that happened before the request left.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	headerTimeout := defaultResponseTimeout + pollTimeout
	clientTimeout := max(defaultClientTimeout, headerTimeout+defaultResponseTimeout)

	return &http.Client{
		Timeout: clientTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   defaultTLSHandshake,
			ResponseHeaderTimeout: headerTimeout,
			ExpectContinueTimeout: time.Second,
		},
	}
}
