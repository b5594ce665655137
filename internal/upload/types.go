// Package upload implements an upload session: log in to a MediaWiki site,
// fetch an edit token and upload a list of local files one after another,
// reporting progress and a per-file result.
package upload

import (
	"errors"
	"fmt"
	"strings"
)

// Credentials identify the wiki and the account used for one session.
type Credentials struct {
	// Site is a hostname ("www.hamichlol.org.il") or a base URL with scheme.
	Site     string
	Username string
	Password string
}

// Validate reports which fields are empty. Sessions do not call it; it is
// the check a caller performs before starting one.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Site) == "" {
		missing = append(missing, "site")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Request is what to upload and how to describe it.
type Request struct {
	// Paths are local files, uploaded in this order.
	Paths []string
	// Overrides maps a source path to the name it gets on the wiki.
	Overrides Overrides
	// Description becomes the text of the new file page.
	Description string
	// Summary is the edit summary.
	Summary string
}

// Validate rejects a request with no files.
func (r Request) Validate() error {
	if len(r.Paths) == 0 {
		return ErrNoFiles
	}
	return nil
}

// Result is the outcome of one file, or the single general failure of a
// session that never reached the upload loop.
type Result struct {
	Path    string `json:"path,omitempty"`
	Target  string `json:"target,omitempty"`
	Success bool   `json:"success"`
	// General marks the session-level failure result. Path and Target are
	// empty on it.
	General bool `json:"general,omitempty"`
	// Message is the line shown to the user.
	Message string `json:"message"`
	// Detail is the error text on failure.
	Detail string `json:"detail,omitempty"`
	// Digest is the BLAKE3 hash of the bytes read, empty when the read failed.
	Digest string `json:"digest,omitempty"`
}

// Tokens are fetched fresh for every session and never stored.
type Tokens struct {
	Login string
	CSRF  string
}

// Status lines emitted by a session.
const (
	StatusFinished = "Upload finished"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrNoFiles            = errors.New("no files to upload")
	ErrSessionUsed        = errors.New("upload session already ran")

	ErrConnect     = errors.New("cannot connect")
	ErrLoginToken  = errors.New("login token request failed")
	ErrLoginFailed = errors.New("login failed")
	ErrCSRFToken   = errors.New("edit token request failed")
)

func successMessage(target string) string {
	return fmt.Sprintf("File %s uploaded successfully", target)
}

func failureMessage(name, detail string) string {
	return fmt.Sprintf("Error uploading %s: %s", name, detail)
}

func generalMessage(detail string) string {
	return "General error: " + detail
}

func errorStatus(detail string) string {
	return "Error: " + detail
}

func uploadingStatus(i, total int, name string) string {
	return fmt.Sprintf("Uploading file %d/%d: %s", i, total, name)
}

// Messages returns the Message of every result, in order.
func Messages(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Message
	}
	return out
}

// Failed reports whether any result is a failure.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Success {
			return true
		}
	}
	return false
}
