// Package config provides settings management for wikiup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/hamichlol/wikiup/internal/constants"
)

// Settings is the persisted form state of the uploader: the wiki to talk to,
// the account, the default page text and edit summary, and transport options.
//
// INI format:
//
//	[wikiup]
//	site = www.hamichlol.org.il
//	username = Example
//	password = hunter2
//	description = {{...}}
//	summary = ...
//	script_path = /w/api.php
//	user_agent =
//	timeout_seconds = 0
//	requests_per_second = 0
//	password_store = file
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	password =
//	no_proxy =
//	warmup = false
//
// With password_store = file the password is stored in clear text, as the
// desktop tool always did. With password_store = keyring it goes to the OS
// credential store and the file keeps an empty value.
type Settings struct {
	Site        string `ini:"site"`
	Username    string `ini:"username"`
	Password    string `ini:"password"`
	Description string `ini:"description"`
	Summary     string `ini:"summary"`

	// ScriptPath is the path of api.php on the site.
	ScriptPath string `ini:"script_path"`

	// UserAgent overrides the default User-Agent header when non-empty.
	UserAgent string `ini:"user_agent"`

	// TimeoutSeconds is the per-request HTTP timeout. 0 means none.
	TimeoutSeconds int `ini:"timeout_seconds"`

	// RequestsPerSecond throttles API calls. 0 means unlimited.
	RequestsPerSecond float64 `ini:"requests_per_second"`

	// PasswordStore is "file" or "keyring".
	PasswordStore string `ini:"password_store"`

	Proxy ProxySettings
}

// ProxySettings configures the outbound proxy.
type ProxySettings struct {
	Mode     string `ini:"mode"` // "no-proxy", "system", "basic", "ntlm"
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"password"`
	NoProxy  string `ini:"no_proxy"` // Comma-separated list of hosts to bypass
	Warmup   bool   `ini:"warmup"`
}

// Environment variables consulted by ApplyEnv.
const (
	EnvConfig   = "WIKIUP_CONFIG"
	EnvSite     = "WIKIUP_SITE"
	EnvUsername = "WIKIUP_USERNAME"
	EnvPassword = "WIKIUP_PASSWORD"
)

// Validation errors
var (
	ErrMissingSite     = errors.New("site is required")
	ErrMissingUsername = errors.New("username is required")
	ErrMissingPassword = errors.New("password is required")
	ErrInvalidTimeout  = errors.New("timeout_seconds must not be negative")
	ErrInvalidRate     = errors.New("requests_per_second must not be negative")
	ErrInvalidStore    = errors.New("password_store must be file or keyring")
	ErrInvalidProxy    = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrUnknownKey      = errors.New("unknown settings key")
)

// NewSettings returns settings populated with the defaults.
func NewSettings() *Settings {
	return &Settings{
		Site:        constants.DefaultSite,
		Description: constants.DefaultDescription,
		Summary:     constants.DefaultSummary,
		ScriptPath:  constants.DefaultScriptPath,

		PasswordStore: PasswordStoreFile,
		Proxy: ProxySettings{
			Mode: "no-proxy",
		},
	}
}

// Load reads settings from an INI file.
// If the file doesn't exist, returns defaults and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Settings, error) {
	s := NewSettings()

	if path == "" {
		var err error
		path, err = DefaultSettingsPath()
		if err != nil {
			return s, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	sec := f.Section("wikiup")
	s.Site = sec.Key("site").MustString(s.Site)
	s.Username = sec.Key("username").String()
	s.Password = sec.Key("password").String()
	s.Description = sec.Key("description").MustString(s.Description)
	s.Summary = sec.Key("summary").MustString(s.Summary)
	s.ScriptPath = sec.Key("script_path").MustString(s.ScriptPath)
	s.UserAgent = sec.Key("user_agent").String()
	s.TimeoutSeconds = sec.Key("timeout_seconds").MustInt(0)
	s.RequestsPerSecond = sec.Key("requests_per_second").MustFloat64(0)
	s.PasswordStore = sec.Key("password_store").MustString(s.PasswordStore)

	proxy := f.Section("proxy")
	s.Proxy.Mode = proxy.Key("mode").MustString(s.Proxy.Mode)
	s.Proxy.Host = proxy.Key("host").String()
	s.Proxy.Port = proxy.Key("port").MustInt(0)
	s.Proxy.User = proxy.Key("user").String()
	s.Proxy.Password = proxy.Key("password").String()
	s.Proxy.NoProxy = proxy.Key("no_proxy").String()
	s.Proxy.Warmup = proxy.Key("warmup").MustBool(false)

	if s.UsesKeyring() && s.Password == "" {
		// An unreachable keyring leaves the password empty; the CLI prompts.
		s.Password, _ = KeyringPassword(s)
	}

	return s, nil
}

// Save writes settings to an INI file.
// Creates parent directories if they don't exist.
// The password is stored in the file - ensure appropriate file permissions.
func Save(s *Settings, path string) error {
	if path == "" {
		var err error
		path, err = DefaultSettingsPath()
		if err != nil {
			return fmt.Errorf("failed to determine settings path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	f := ini.Empty()

	sec, err := f.NewSection("wikiup")
	if err != nil {
		return fmt.Errorf("failed to create wikiup section: %w", err)
	}
	sec.Key("site").SetValue(s.Site)
	sec.Key("username").SetValue(s.Username)
	if s.UsesKeyring() {
		if err := StoreKeyringPassword(s); err != nil {
			return err
		}
		sec.Key("password").SetValue("")
	} else {
		sec.Key("password").SetValue(s.Password)
	}
	sec.Key("description").SetValue(s.Description)
	sec.Key("summary").SetValue(s.Summary)
	sec.Key("script_path").SetValue(s.ScriptPath)
	sec.Key("user_agent").SetValue(s.UserAgent)
	sec.Key("timeout_seconds").SetValue(strconv.Itoa(s.TimeoutSeconds))
	sec.Key("requests_per_second").SetValue(strconv.FormatFloat(s.RequestsPerSecond, 'f', -1, 64))
	sec.Key("password_store").SetValue(s.PasswordStore)

	proxy, err := f.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(s.Proxy.Mode)
	proxy.Key("host").SetValue(s.Proxy.Host)
	proxy.Key("port").SetValue(strconv.Itoa(s.Proxy.Port))
	proxy.Key("user").SetValue(s.Proxy.User)
	proxy.Key("password").SetValue(s.Proxy.Password)
	proxy.Key("no_proxy").SetValue(s.Proxy.NoProxy)
	proxy.Key("warmup").SetValue(strconv.FormatBool(s.Proxy.Warmup))

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set settings permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides connection fields from WIKIUP_* environment variables.
func (s *Settings) ApplyEnv() {
	if v := os.Getenv(EnvSite); v != "" {
		s.Site = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		s.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		s.Password = v
	}
}

// Validate checks the fields needed to start an upload session.
// This is the "non-empty" check the desktop form used to do before enabling
// the upload button.
func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Site) == "" {
		errs = append(errs, ErrMissingSite)
	}
	if strings.TrimSpace(s.Username) == "" {
		errs = append(errs, ErrMissingUsername)
	}
	if s.Password == "" {
		errs = append(errs, ErrMissingPassword)
	}
	if s.TimeoutSeconds < 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if s.RequestsPerSecond < 0 {
		errs = append(errs, ErrInvalidRate)
	}
	if err := validatePasswordStore(s.PasswordStore); err != nil {
		errs = append(errs, err)
	}
	if err := validateProxyMode(s.Proxy.Mode); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateProxyMode(mode string) error {
	switch strings.ToLower(mode) {
	case "", "no-proxy", "system", "basic", "ntlm":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProxy, mode)
	}
}

// Keys lists the settable keys in display order.
func Keys() []string {
	return []string{
		"site", "username", "password", "description", "summary",
		"script_path", "user_agent", "timeout_seconds",
		"requests_per_second", "password_store",
		"proxy.mode", "proxy.host", "proxy.port", "proxy.user",
		"proxy.password", "proxy.no_proxy", "proxy.warmup",
	}
}

// Set assigns a single key by its INI name ("site", "proxy.host", ...).
func (s *Settings) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "site":
		s.Site = value
	case "username":
		s.Username = value
	case "password":
		s.Password = value
	case "description":
		s.Description = value
	case "summary":
		s.Summary = value
	case "script_path":
		s.ScriptPath = value
	case "user_agent":
		s.UserAgent = value
	case "timeout_seconds":
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return ErrInvalidTimeout
		}
		s.TimeoutSeconds = v
	case "requests_per_second":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 {
			return ErrInvalidRate
		}
		s.RequestsPerSecond = v
	case "password_store":
		if err := validatePasswordStore(value); err != nil {
			return err
		}
		s.PasswordStore = strings.ToLower(value)
	case "proxy.mode":
		if err := validateProxyMode(value); err != nil {
			return err
		}
		s.Proxy.Mode = value
	case "proxy.host":
		s.Proxy.Host = value
	case "proxy.port":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid proxy.port %q: %w", value, err)
		}
		s.Proxy.Port = v
	case "proxy.user":
		s.Proxy.User = value
	case "proxy.password":
		s.Proxy.Password = value
	case "proxy.no_proxy":
		s.Proxy.NoProxy = value
	case "proxy.warmup":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid proxy.warmup %q: %w", value, err)
		}
		s.Proxy.Warmup = v
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// Get returns the string form of a key. Passwords are masked unless reveal is set.
func (s *Settings) Get(key string, reveal bool) (string, error) {
	mask := func(v string) string {
		if reveal || v == "" {
			return v
		}
		return "********"
	}
	switch strings.ToLower(key) {
	case "site":
		return s.Site, nil
	case "username":
		return s.Username, nil
	case "password":
		return mask(s.Password), nil
	case "description":
		return s.Description, nil
	case "summary":
		return s.Summary, nil
	case "script_path":
		return s.ScriptPath, nil
	case "user_agent":
		return s.UserAgent, nil
	case "timeout_seconds":
		return strconv.Itoa(s.TimeoutSeconds), nil
	case "requests_per_second":
		return strconv.FormatFloat(s.RequestsPerSecond, 'f', -1, 64), nil
	case "password_store":
		return s.PasswordStore, nil
	case "proxy.mode":
		return s.Proxy.Mode, nil
	case "proxy.host":
		return s.Proxy.Host, nil
	case "proxy.port":
		return strconv.Itoa(s.Proxy.Port), nil
	case "proxy.user":
		return s.Proxy.User, nil
	case "proxy.password":
		return mask(s.Proxy.Password), nil
	case "proxy.no_proxy":
		return s.Proxy.NoProxy, nil
	case "proxy.warmup":
		return strconv.FormatBool(s.Proxy.Warmup), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}
