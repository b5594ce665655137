// Package constants holds application-wide tunables shared across packages.
package constants

import "time"

// Application identity
const (
	// AppName is used for the config directory and the User-Agent product token.
	AppName = "wikiup"

	// ContactURL is advertised in the User-Agent per the Wikimedia User-Agent policy.
	ContactURL = "https://github.com/hamichlol/wikiup"
)

// Wiki defaults. These match the site the tool was originally written for.
const (
	DefaultSite        = "www.hamichlol.org.il"
	DefaultScriptPath  = "/w/api.php"
	DefaultDescription = "{{יצירה נגזרת|מרוטש=כן}}"
	DefaultSummary     = "העלאת תמונה מרוטשת"
)

// Event Bus Configuration
const (
	// EventBusDefaultBuffer - default buffer size for event channels.
	// A session emits roughly two events per file, so this covers several
	// hundred files even if the consumer falls behind.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size
	EventBusMaxBuffer = 5000
)

// HTTP Client Timeouts
//
// There is deliberately no overall request timeout: a stalled upload blocks
// until the server or the user gives up. TimeoutSeconds in the settings file
// can opt into one.
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout bounds the optional proxy warmup request.
	ProxyWarmupTimeout = 15 * time.Second
)
