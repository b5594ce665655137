package mediawiki

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken means a token query returned JSON without the expected token.
	ErrMissingToken = errors.New("token missing from response")

	// ErrLoginRejected means action=login answered with something other than Success.
	ErrLoginRejected = errors.New("login rejected")
)

// APIError is the "error" object of an Action API response.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Info
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Info)
}

// LoginError carries the login.result and reason of a rejected login.
type LoginError struct {
	Result string
	Reason string
	Body   string
}

func (e *LoginError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Result, e.Reason)
	}
	if e.Result == "" {
		return fmt.Sprintf("no login result: %s", e.Body)
	}
	return fmt.Sprintf("%s: %s", e.Result, e.Body)
}

func (e *LoginError) Unwrap() error { return ErrLoginRejected }

// UnexpectedResponseError is returned when a response parses but does not
// have the shape the call expects, or does not parse at all.
type UnexpectedResponseError struct {
	Action     string
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected %s response (HTTP %d): %v: %s", e.Action, e.StatusCode, e.Err, e.Body)
	}
	return fmt.Sprintf("unexpected %s response (HTTP %d): %s", e.Action, e.StatusCode, e.Body)
}

func (e *UnexpectedResponseError) Unwrap() error { return e.Err }

// Detail returns the most useful human-readable description of err: the
// API's error info when the wiki sent one, the raw body for an unexpected
// response shape, otherwise the error text.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Info != "" {
		return apiErr.Info
	}
	var unexpected *UnexpectedResponseError
	if errors.As(err, &unexpected) && unexpected.Err == nil && unexpected.Body != "" {
		return unexpected.Body
	}
	return err.Error()
}
