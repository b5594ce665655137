// Package testutils provides an in-process fake MediaWiki for tests.
package testutils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

const (
	sessionCookie = "fakewiki_session"
	anonSession   = "anon"
	userSession   = "user"
)

// RecordedUpload is one action=upload request as the fake wiki saw it.
type RecordedUpload struct {
	Filename       string
	Comment        string
	Text           string
	Token          string
	IgnoreWarnings string
	PartName       string
	Data           []byte
}

// FakeWiki answers the subset of api.php used by the uploader: token
// queries, action=login and action=upload. It enforces the cookie session
// and both tokens the same way a real wiki does.
type FakeWiki struct {
	Server *httptest.Server

	Username   string
	Password   string
	LoginToken string
	CSRFToken  string

	// LoginResult forces the login.result value (e.g. "NeedToken") when set.
	LoginResult string
	// MalformedLoginToken makes the login token query return a non-token body.
	MalformedLoginToken bool
	// OmitCSRFToken makes the csrf query return no csrftoken field.
	OmitCSRFToken bool
	// UploadErrors maps a target filename to the API error info returned for it.
	UploadErrors map[string]string
	// UploadRaw maps a target filename to a raw response body returned for it.
	UploadRaw map[string]string
	// DropConnection maps a target filename to a hijacked, closed connection.
	DropConnection map[string]bool

	mu      sync.Mutex
	calls   []string
	uploads []RecordedUpload
	agents  []string
}

// NewFakeWiki starts a fake wiki accepting username/password.
func NewFakeWiki(username, password string) *FakeWiki {
	fw := &FakeWiki{
		Username:       username,
		Password:       password,
		LoginToken:     "logintoken123+\\",
		CSRFToken:      "csrftoken456+\\",
		UploadErrors:   map[string]string{},
		UploadRaw:      map[string]string{},
		DropConnection: map[string]bool{},
	}
	fw.Server = httptest.NewServer(http.HandlerFunc(fw.serve))
	return fw
}

// Close shuts the server down.
func (fw *FakeWiki) Close() {
	fw.Server.Close()
}

// Endpoint returns the api.php URL of the fake wiki.
func (fw *FakeWiki) Endpoint() string {
	return fw.Server.URL + "/w/api.php"
}

// Calls returns the sequence of API calls received, e.g. "query:login", "login", "query:csrf", "upload".
func (fw *FakeWiki) Calls() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.calls...)
}

// Uploads returns every upload request received, in order.
func (fw *FakeWiki) Uploads() []RecordedUpload {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]RecordedUpload(nil), fw.uploads...)
}

// UserAgents returns the User-Agent of every request received.
func (fw *FakeWiki) UserAgents() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.agents...)
}

func (fw *FakeWiki) record(call string, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.calls = append(fw.calls, call)
	fw.agents = append(fw.agents, r.UserAgent())
}

func (fw *FakeWiki) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/w/api.php" {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseMultipartForm(32 << 20); err != nil && err != http.ErrNotMultipart {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form == nil {
			_ = r.ParseForm()
		}
	}

	session := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		session = c.Value
	}

	switch r.FormValue("action") {
	case "query":
		if r.FormValue("meta") != "tokens" {
			writeJSON(w, apiError("badvalue", "unsupported query"))
			return
		}
		if r.FormValue("type") == "login" {
			fw.record("query:login", r)
			if fw.MalformedLoginToken {
				writeJSON(w, map[string]interface{}{"batchcomplete": ""})
				return
			}
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: anonSession, Path: "/"})
			writeJSON(w, map[string]interface{}{
				"batchcomplete": "",
				"query":         map[string]interface{}{"tokens": map[string]string{"logintoken": fw.LoginToken}},
			})
			return
		}
		fw.record("query:csrf", r)
		if fw.OmitCSRFToken {
			writeJSON(w, map[string]interface{}{"query": map[string]interface{}{"tokens": map[string]string{}}})
			return
		}
		token := "+\\"
		if session == userSession {
			token = fw.CSRFToken
		}
		writeJSON(w, map[string]interface{}{
			"batchcomplete": "",
			"query":         map[string]interface{}{"tokens": map[string]string{"csrftoken": token}},
		})

	case "login":
		fw.record("login", r)
		if fw.LoginResult != "" {
			writeJSON(w, map[string]interface{}{"login": map[string]string{"result": fw.LoginResult}})
			return
		}
		if session != anonSession || r.FormValue("lgtoken") != fw.LoginToken {
			writeJSON(w, map[string]interface{}{"login": map[string]string{"result": "NeedToken"}})
			return
		}
		if r.FormValue("lgname") != fw.Username || r.FormValue("lgpassword") != fw.Password {
			writeJSON(w, map[string]interface{}{"login": map[string]string{
				"result": "Failed",
				"reason": "Incorrect username or password entered. Please try again.",
			}})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: userSession, Path: "/"})
		writeJSON(w, map[string]interface{}{"login": map[string]interface{}{
			"result": "Success", "lguserid": 42, "lgusername": fw.Username,
		}})

	case "upload":
		fw.record("upload", r)
		rec := RecordedUpload{
			Filename:       r.FormValue("filename"),
			Comment:        r.FormValue("comment"),
			Text:           r.FormValue("text"),
			Token:          r.FormValue("token"),
			IgnoreWarnings: r.FormValue("ignorewarnings"),
		}
		if f, hdr, err := r.FormFile("file"); err == nil {
			rec.PartName = hdr.Filename
			rec.Data, _ = io.ReadAll(f)
			f.Close()
		}
		fw.mu.Lock()
		fw.uploads = append(fw.uploads, rec)
		fw.mu.Unlock()

		if fw.DropConnection[rec.Filename] {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, err := hj.Hijack()
				if err == nil {
					conn.Close()
					return
				}
			}
		}
		if session != userSession || rec.Token != fw.CSRFToken {
			writeJSON(w, apiError("badtoken", "Invalid CSRF token."))
			return
		}
		if rec.PartName == "" {
			writeJSON(w, apiError("missingparam", "One of the parameters \"filekey\", \"file\" and \"url\" is required."))
			return
		}
		if raw, ok := fw.UploadRaw[rec.Filename]; ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, raw)
			return
		}
		if info, ok := fw.UploadErrors[rec.Filename]; ok {
			writeJSON(w, apiError("fileexists-forbidden", info))
			return
		}
		writeJSON(w, map[string]interface{}{"upload": map[string]string{
			"result": "Success", "filename": rec.Filename,
		}})

	default:
		writeJSON(w, apiError("badvalue", "Unrecognized value for parameter \"action\"."))
	}
}

func apiError(code, info string) map[string]interface{} {
	return map[string]interface{}{"error": map[string]string{"code": code, "info": info}}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
