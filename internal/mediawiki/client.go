// Package mediawiki is a small client for the MediaWiki Action API: token
// queries, action=login and action=upload.
//
// Reference: https://www.mediawiki.org/wiki/API:Main_page
package mediawiki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hamichlol/wikiup/internal/constants"
	"github.com/hamichlol/wikiup/internal/logging"
	"github.com/hamichlol/wikiup/internal/version"
)

// maxErrorBody caps how much of an unexpected body ends up in error messages.
const maxErrorBody = 2048

// DefaultUserAgent is sent unless overridden.
// Policy: https://meta.wikimedia.org/wiki/User-Agent_policy
func DefaultUserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", constants.AppName, strings.TrimPrefix(version.Version, "v"), constants.ContactURL)
}

// Client talks to one wiki's api.php. Session state lives in the cookie jar
// of the underlying HTTP client, so a Client is as single-use as its
// http.Client.
type Client struct {
	httpClient *nethttp.Client
	endpoint   string
	userAgent  string
	limiter    *rate.Limiter
	log        *logging.Logger
}

// NewClient creates a client for endpoint (a full api.php URL).
func NewClient(httpClient *nethttp.Client, endpoint, userAgent string, log *logging.Logger) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		userAgent:  userAgent,
		log:        log,
	}
}

// Endpoint returns the api.php URL this client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SetRequestRate throttles API calls to perSecond requests per second with a
// burst of one. Zero or less removes the limit.
func (c *Client) SetRequestRate(perSecond float64) {
	if perSecond <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// EndpointForSite builds the api.php URL for a site.
//
// A bare hostname ("www.example.org") becomes https://www.example.org/w/api.php.
// A site with an explicit scheme keeps it, so local test wikis over plain
// http work. A site that already points at api.php is used as is.
func EndpointForSite(site, scriptPath string) (string, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return "", errors.New("site is empty")
	}
	if scriptPath == "" {
		scriptPath = constants.DefaultScriptPath
	}
	if !strings.HasPrefix(scriptPath, "/") {
		scriptPath = "/" + scriptPath
	}

	raw := site
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid site %q: %w", site, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid site %q: no host", site)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid site %q: unsupported scheme %s", site, u.Scheme)
	}

	if strings.HasSuffix(u.Path, ".php") {
		u.RawQuery = ""
		return u.String(), nil
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + scriptPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// LoginToken fetches a login token with an unauthenticated query.
func (c *Client) LoginToken(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", "login")
	params.Set("format", "json")

	var resp tokensResponse
	raw, err := c.get(ctx, "login token", params, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}
	if resp.Query.Tokens.LoginToken == "" {
		return "", &UnexpectedResponseError{Action: "login token", StatusCode: nethttp.StatusOK, Body: truncate(raw), Err: ErrMissingToken}
	}
	return resp.Query.Tokens.LoginToken, nil
}

// Login authenticates with action=login. Anything but a Success result is an
// error, including NeedToken; there is no second attempt.
func (c *Client) Login(ctx context.Context, username, password, loginToken string) (*LoginResult, error) {
	params := url.Values{}
	params.Set("action", "login")
	params.Set("lgname", username)
	params.Set("lgpassword", password)
	params.Set("lgtoken", loginToken)
	params.Set("format", "json")

	var resp loginResponse
	raw, err := c.postForm(ctx, "login", params, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginRejected, resp.Error)
	}
	if resp.Login == nil {
		return nil, &LoginError{Body: truncate(raw)}
	}
	if resp.Login.Result != ResultSuccess {
		return nil, &LoginError{Result: resp.Login.Result, Reason: resp.Login.Reason, Body: truncate(raw)}
	}

	return &LoginResult{UserID: resp.Login.LgUserID, UserName: resp.Login.LgUserName}, nil
}

// CSRFToken fetches the edit token of the logged-in session.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("format", "json")

	var resp tokensResponse
	raw, err := c.get(ctx, "csrf token", params, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}
	// An anonymous session gets the placeholder token "+\", which the wiki
	// rejects on upload. That is left to the upload call to report.
	if resp.Query.Tokens.CSRFToken == "" {
		return "", &UnexpectedResponseError{Action: "csrf token", StatusCode: nethttp.StatusOK, Body: truncate(raw), Err: ErrMissingToken}
	}
	return resp.Query.Tokens.CSRFToken, nil
}

// Upload posts one file with action=upload. ignorewarnings is always set, so
// an existing file with the same name is overwritten and duplicate-content
// warnings are suppressed.
//
// A response with upload.result == "Success" returns the stored name. An
// "error" object returns *APIError; any other shape returns
// *UnexpectedResponseError carrying the raw body.
func (c *Client) Upload(ctx context.Context, p UploadParams) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"action", "upload"},
		{"filename", p.Filename},
		{"comment", p.Comment},
		{"text", p.Text},
		{"token", p.Token},
		{"ignorewarnings", "1"},
		{"format", "json"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile("file", p.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(p.Data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var resp uploadResponse
	raw, err := c.do(ctx, "upload", nethttp.MethodPost, c.endpoint, &buf, w.FormDataContentType(), &resp)
	if err != nil {
		return nil, err
	}

	if resp.Upload != nil && resp.Upload.Result == ResultSuccess {
		name := resp.Upload.Filename
		if name == "" {
			name = p.Filename
		}
		return &UploadResult{Filename: name}, nil
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return nil, &UnexpectedResponseError{Action: "upload", StatusCode: nethttp.StatusOK, Body: truncate(raw)}
}

func (c *Client) get(ctx context.Context, action string, params url.Values, out interface{}) ([]byte, error) {
	return c.do(ctx, action, nethttp.MethodGet, c.endpoint+"?"+params.Encode(), nil, "", out)
}

func (c *Client) postForm(ctx context.Context, action string, params url.Values, out interface{}) ([]byte, error) {
	body := strings.NewReader(params.Encode())
	return c.do(ctx, action, nethttp.MethodPost, c.endpoint, body, "application/x-www-form-urlencoded", out)
}

// do sends one request and decodes the JSON body into out. It returns the
// raw body so callers can quote it in errors.
func (c *Client) do(ctx context.Context, action, method, target string, body io.Reader, contentType string, out interface{}) ([]byte, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s request throttled: %w", action, err)
		}
	}

	c.log.Debug().Str("action", action).Str("method", method).Msg("api call")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", action, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return raw, &UnexpectedResponseError{Action: action, StatusCode: resp.StatusCode, Body: truncate(raw), Err: err}
	}

	return raw, nil
}

func truncate(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
