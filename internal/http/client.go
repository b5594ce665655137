// Package http builds the HTTP client an upload session talks through:
// a cookie-carrying client with the configured proxy, wrapped by
// go-retryablehttp for leveled request logging.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"

	"github.com/hamichlol/wikiup/internal/config"
	"github.com/hamichlol/wikiup/internal/constants"
	"github.com/hamichlol/wikiup/internal/logging"
)

// Options configures NewSessionClient.
type Options struct {
	// Proxy selects how requests leave the machine.
	Proxy config.ProxySettings

	// Timeout is the overall per-request timeout. 0 means none, which is the
	// default: a stalled upload blocks that step until the server gives up.
	Timeout time.Duration

	// WarmupURL is requested once when Proxy.Warmup is set.
	WarmupURL string

	Logger *logging.Logger
}

// retryLogger implements the retryablehttp.LeveledLogger interface on top of zerolog.
type retryLogger struct {
	log *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

// noRetry never asks for another attempt. Every failure is terminal for its
// scope, so the wrapper is only used for its logging and request handling.
func noRetry(ctx context.Context, _ *nethttp.Response, _ error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

// NewSessionClient creates the HTTP client owned by one upload session.
//
// The client keeps a cookie jar so the login cookies set by the wiki are
// sent on every later call. It must not be shared between sessions.
func NewSessionClient(opts Options) (*nethttp.Client, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	tr := newTransport()

	rt, err := configureProxy(tr, opts.Proxy, opts.Logger)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	inner := &nethttp.Client{
		Transport: rt,
		Jar:       jar,
	}

	if opts.Proxy.Warmup && opts.WarmupURL != "" && proxyActive(opts.Proxy) {
		if err := warmupProxy(inner, opts.WarmupURL); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = inner
	retryClient.RetryMax = 0
	retryClient.CheckRetry = noRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{log: opts.Logger}

	client := retryClient.StandardClient()
	client.Timeout = opts.Timeout
	return client, nil
}

// newTransport returns the base transport. Uploads are single requests of
// already-compressed media, so compression is off and the pool is small.
func newTransport() *nethttp.Transport {
	tr := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
	}

	_ = http2.ConfigureTransport(tr)

	// Set DISABLE_HTTP2=true to force HTTP/1.1
	if os.Getenv("DISABLE_HTTP2") == "true" {
		disableHTTP2(tr)
	}

	return tr
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}
