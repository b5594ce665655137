package mediawiki

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamichlol/wikiup/internal/testutils"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return NewClient(&http.Client{Jar: jar}, endpoint, "", nil)
}

func login(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()
	lt, err := c.LoginToken(ctx)
	require.NoError(t, err)
	_, err = c.Login(ctx, "Uploader", "secret", lt)
	require.NoError(t, err)
}

func TestEndpointForSite(t *testing.T) {
	tests := []struct {
		site       string
		scriptPath string
		expected   string
		hasError   bool
	}{
		{"www.hamichlol.org.il", "", "https://www.hamichlol.org.il/w/api.php", false},
		{"  commons.wikimedia.org  ", "/w/api.php", "https://commons.wikimedia.org/w/api.php", false},
		{"wiki.example.org", "api.php", "https://wiki.example.org/api.php", false},
		{"http://localhost:8080", "", "http://localhost:8080/w/api.php", false},
		{"https://wiki.example.org/", "", "https://wiki.example.org/w/api.php", false},
		{"https://wiki.example.org/mw/api.php", "", "https://wiki.example.org/mw/api.php", false},
		{"", "", "", true},
		{"ftp://wiki.example.org", "", "", true},
		{"https://", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.site, func(t *testing.T) {
			got, err := EndpointForSite(tc.site, tc.scriptPath)
			if tc.hasError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestLoginToken(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()

	c := newTestClient(t, fw.Endpoint())
	token, err := c.LoginToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, fw.LoginToken, token)
	assert.Equal(t, []string{"query:login"}, fw.Calls())
}

func TestLoginTokenMalformed(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()
	fw.MalformedLoginToken = true

	c := newTestClient(t, fw.Endpoint())
	_, err := c.LoginToken(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingToken))
}

func TestLoginTokenNotJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>Bad Gateway</html>"))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.LoginToken(context.Background())

	var unexpected *UnexpectedResponseError
	require.True(t, errors.As(err, &unexpected))
	assert.Equal(t, http.StatusBadGateway, unexpected.StatusCode)
	assert.Contains(t, unexpected.Body, "Bad Gateway")
}

func TestLoginSuccess(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()

	c := newTestClient(t, fw.Endpoint())
	ctx := context.Background()
	lt, err := c.LoginToken(ctx)
	require.NoError(t, err)

	res, err := c.Login(ctx, "Uploader", "secret", lt)
	require.NoError(t, err)
	assert.Equal(t, "Uploader", res.UserName)
	assert.Equal(t, 42, res.UserID)
}

func TestLoginRejected(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()

	c := newTestClient(t, fw.Endpoint())
	ctx := context.Background()
	lt, err := c.LoginToken(ctx)
	require.NoError(t, err)

	_, err = c.Login(ctx, "Uploader", "wrong", lt)
	require.Error(t, err)

	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, "Failed", loginErr.Result)
	assert.Contains(t, loginErr.Reason, "Incorrect username or password")
	assert.True(t, errors.Is(err, ErrLoginRejected))
}

func TestLoginNeedTokenIsNotRetried(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()
	fw.LoginResult = ResultNeedToken

	c := newTestClient(t, fw.Endpoint())
	_, err := c.Login(context.Background(), "Uploader", "secret", "stale")

	var loginErr *LoginError
	require.True(t, errors.As(err, &loginErr))
	assert.Equal(t, ResultNeedToken, loginErr.Result)
	assert.Equal(t, []string{"login"}, fw.Calls())
}

func TestCSRFTokenRequiresSession(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()

	c := newTestClient(t, fw.Endpoint())
	login(t, c)

	token, err := c.CSRFToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fw.CSRFToken, token)
}

func TestCSRFTokenMissing(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()
	fw.OmitCSRFToken = true

	c := newTestClient(t, fw.Endpoint())
	login(t, c)

	_, err := c.CSRFToken(context.Background())
	assert.True(t, errors.Is(err, ErrMissingToken))
}

func TestUploadSendsAllFields(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()

	c := newTestClient(t, fw.Endpoint())
	login(t, c)
	csrf, err := c.CSRFToken(context.Background())
	require.NoError(t, err)

	res, err := c.Upload(context.Background(), UploadParams{
		Filename: "Logo.png",
		Comment:  "summary text",
		Text:     "{{Information}}",
		Token:    csrf,
		Data:     []byte("PNGDATA"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Logo.png", res.Filename)

	uploads := fw.Uploads()
	require.Len(t, uploads, 1)
	up := uploads[0]
	assert.Equal(t, "Logo.png", up.Filename)
	assert.Equal(t, "Logo.png", up.PartName)
	assert.Equal(t, "summary text", up.Comment)
	assert.Equal(t, "{{Information}}", up.Text)
	assert.Equal(t, fw.CSRFToken, up.Token)
	assert.Equal(t, "1", up.IgnoreWarnings)
	assert.Equal(t, []byte("PNGDATA"), up.Data)

	for _, ua := range fw.UserAgents() {
		assert.True(t, strings.HasPrefix(ua, "wikiup/"), "unexpected user agent %q", ua)
	}
}

func TestUploadAPIError(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()
	fw.UploadErrors["Taken.png"] = "The file exists and you cannot overwrite it."

	c := newTestClient(t, fw.Endpoint())
	login(t, c)
	csrf, err := c.CSRFToken(context.Background())
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), UploadParams{Filename: "Taken.png", Token: csrf, Data: []byte("x")})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "fileexists-forbidden", apiErr.Code)
	assert.Equal(t, "The file exists and you cannot overwrite it.", Detail(err))
}

func TestUploadUnexpectedShape(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()
	fw.UploadRaw["Warn.png"] = `{"upload":{"result":"Warning","warnings":{"duplicate":["Other.png"]}}}`

	c := newTestClient(t, fw.Endpoint())
	login(t, c)
	csrf, err := c.CSRFToken(context.Background())
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), UploadParams{Filename: "Warn.png", Token: csrf, Data: []byte("x")})

	var unexpected *UnexpectedResponseError
	require.True(t, errors.As(err, &unexpected))
	assert.Contains(t, Detail(err), `"duplicate"`)
}

func TestUploadWithoutLoginFails(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()

	c := newTestClient(t, fw.Endpoint())
	_, err := c.Upload(context.Background(), UploadParams{Filename: "A.png", Token: "+\\", Data: []byte("x")})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "badtoken", apiErr.Code)
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "", Detail(nil))
	assert.Equal(t, "bad thing", Detail(&APIError{Code: "x", Info: "bad thing"}))
	assert.Equal(t, "raw body", Detail(&UnexpectedResponseError{Action: "upload", Body: "raw body"}))
	assert.Equal(t, "boom", Detail(errors.New("boom")))
}

func TestDefaultUserAgent(t *testing.T) {
	ua := DefaultUserAgent()
	assert.True(t, strings.HasPrefix(ua, "wikiup/"))
	assert.Contains(t, ua, "https://")
}

func TestRequestRateThrottlesCalls(t *testing.T) {
	fw := testutils.NewFakeWiki("Uploader", "secret")
	defer fw.Close()

	c := newTestClient(t, fw.Endpoint())
	c.SetRequestRate(0.01)

	_, err := c.LoginToken(context.Background())
	require.NoError(t, err)

	// The second call would have to wait 100s for a token.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.LoginToken(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Equal(t, []string{"query:login"}, fw.Calls())

	c.SetRequestRate(0)
	_, err = c.LoginToken(context.Background())
	require.NoError(t, err)
}
