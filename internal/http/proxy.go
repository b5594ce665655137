package http

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"os"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/hamichlol/wikiup/internal/config"
	"github.com/hamichlol/wikiup/internal/constants"
	"github.com/hamichlol/wikiup/internal/logging"
)

// configureProxy installs the proxy function on tr and returns the round
// tripper to use. NTLM mode wraps tr in a negotiator.
func configureProxy(tr *nethttp.Transport, p config.ProxySettings, log *logging.Logger) (nethttp.RoundTripper, error) {
	mode := strings.ToLower(p.Mode)
	switch mode {
	case "no-proxy", "":
		tr.Proxy = nil
		return tr, nil

	case "system":
		tr.Proxy = nethttp.ProxyFromEnvironment
		if envProxySet() && os.Getenv("FORCE_HTTP2") != "true" {
			disableHTTP2(tr)
		}
		return tr, nil

	case "basic", "ntlm":
		// Fall back to no proxy if the host is missing so a half-written
		// settings file does not make every command fail.
		if p.Host == "" {
			log.Warnf("Proxy mode is %s but host is missing - falling back to no-proxy mode", mode)
			tr.Proxy = nil
			return tr, nil
		}

		if p.User != "" && p.Password == "" {
			log.Warnf("Proxy user configured but password missing - proxy auth disabled until password is set")
		}

		tr.Proxy = proxyFuncWithBypass(buildProxyURL(p), p.NoProxy, log)

		// Proxies often mishandle HTTP/2 multiplexing
		if os.Getenv("FORCE_HTTP2") != "true" {
			disableHTTP2(tr)
		}

		if mode == "ntlm" {
			return ntlmssp.Negotiator{RoundTripper: tr}, nil
		}
		return tr, nil

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", p.Mode)
	}
}

// proxyActive reports whether requests will go through a proxy at all.
func proxyActive(p config.ProxySettings) bool {
	switch strings.ToLower(p.Mode) {
	case "no-proxy", "":
		return false
	case "system":
		return envProxySet()
	default:
		return p.Host != ""
	}
}

func envProxySet() bool {
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}

// buildProxyURL constructs a proxy URL from settings
func buildProxyURL(p config.ProxySettings) *url.URL {
	port := p.Port
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", p.Host, port),
	}

	// Only embed credentials if both user AND password are provided
	if p.User != "" && p.Password != "" {
		proxyURL.User = url.UserPassword(p.User, p.Password)
	}

	return proxyURL
}

// warmupProxy performs one request to establish the proxy connection
// (and the NTLM handshake) before the first API call.
func warmupProxy(client *nethttp.Client, target string) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}

	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, log *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			log.Debugf("proxy bypass: %s (direct connection)", req.URL.Host)
		} else {
			log.Debugf("proxied: %s -> %s", req.URL.Host, result.Host)
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by the CLI to decide whether to prompt.
func NeedsProxyPassword(p config.ProxySettings) bool {
	mode := strings.ToLower(p.Mode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return p.User != "" && p.Password == ""
}
