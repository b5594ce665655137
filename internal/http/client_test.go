package http

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/hamichlol/wikiup/internal/config"
	"github.com/hamichlol/wikiup/internal/logging"
)

// TestSessionClientKeepsCookies verifies the login cookie set on one response
// is sent back on the next request.
func TestSessionClientKeepsCookies(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path == "/login" {
			nethttp.SetCookie(w, &nethttp.Cookie{Name: "wiki_session", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("wiki_session")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(nethttp.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client, err := NewSessionClient(Options{Logger: logging.Nop()})
	if err != nil {
		t.Fatalf("NewSessionClient() error = %v", err)
	}

	resp, err := client.Get(srv.URL + "/login")
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/api")
	if err != nil {
		t.Fatalf("api request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		t.Errorf("expected cookie to be sent, got status %d", resp.StatusCode)
	}
}

// TestSessionClientDoesNotRetry verifies a server error is returned to the
// caller after exactly one attempt, with the body intact.
func TestSessionClientDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
		w.WriteHeader(nethttp.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "maintenance")
	}))
	defer srv.Close()

	client, err := NewSessionClient(Options{})
	if err != nil {
		t.Fatalf("NewSessionClient() error = %v", err)
	}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("expected passthrough response, got error %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != nethttp.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
	if string(body) != "maintenance" {
		t.Errorf("expected body to be preserved, got %q", body)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", got)
	}
}

// TestSessionClientNetworkError verifies a connection failure surfaces as an error.
func TestSessionClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(nethttp.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewSessionClient(Options{})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := nethttp.NewRequestWithContext(context.Background(), nethttp.MethodGet, url, nil)
	resp, err := client.Do(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error for closed server")
	}
}

func TestNewSessionClientRejectsUnknownProxyMode(t *testing.T) {
	_, err := NewSessionClient(Options{Proxy: config.ProxySettings{Mode: "socks5"}})
	if err == nil {
		t.Fatal("expected error for unsupported proxy mode")
	}
}

func TestConfigureProxyModes(t *testing.T) {
	tests := []struct {
		name      string
		proxy     config.ProxySettings
		wantProxy bool
		wantNTLM  bool
	}{
		{"no-proxy", config.ProxySettings{Mode: "no-proxy"}, false, false},
		{"empty", config.ProxySettings{}, false, false},
		{"system", config.ProxySettings{Mode: "system"}, true, false},
		{"basic", config.ProxySettings{Mode: "basic", Host: "proxy.corp", Port: 3128}, true, false},
		{"basic without host", config.ProxySettings{Mode: "basic"}, false, false},
		{"ntlm", config.ProxySettings{Mode: "NTLM", Host: "proxy.corp"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTransport()
			rt, err := configureProxy(tr, tt.proxy, logging.Nop())
			if err != nil {
				t.Fatalf("configureProxy() error = %v", err)
			}
			if (tr.Proxy != nil) != tt.wantProxy {
				t.Errorf("proxy func set = %v, want %v", tr.Proxy != nil, tt.wantProxy)
			}
			_, isNTLM := rt.(ntlmssp.Negotiator)
			if isNTLM != tt.wantNTLM {
				t.Errorf("ntlm negotiator = %v, want %v", isNTLM, tt.wantNTLM)
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	u := buildProxyURL(config.ProxySettings{Host: "proxy.corp"})
	if u.Host != "proxy.corp:8080" {
		t.Errorf("expected default port 8080, got %s", u.Host)
	}
	if u.User != nil {
		t.Error("expected no credentials without password")
	}

	u = buildProxyURL(config.ProxySettings{Host: "proxy.corp", Port: 3128, User: "u", Password: "p"})
	if u.String() != "http://u:p@proxy.corp:3128" {
		t.Errorf("unexpected proxy URL %s", u.String())
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	tests := []struct {
		proxy config.ProxySettings
		want  bool
	}{
		{config.ProxySettings{Mode: "no-proxy", User: "u"}, false},
		{config.ProxySettings{Mode: "basic", User: "u"}, true},
		{config.ProxySettings{Mode: "ntlm", User: "u", Password: "p"}, false},
		{config.ProxySettings{Mode: "basic"}, false},
	}
	for _, tt := range tests {
		if got := NeedsProxyPassword(tt.proxy); got != tt.want {
			t.Errorf("NeedsProxyPassword(%+v) = %v, want %v", tt.proxy, got, tt.want)
		}
	}
}
