package upload

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	wikihttp "github.com/hamichlol/wikiup/internal/http"
	"github.com/hamichlol/wikiup/internal/logging"
	"github.com/hamichlol/wikiup/internal/mediawiki"
)

// Options configure how a session reaches the wiki.
type Options struct {
	// ScriptPath is the path of api.php on the site. Empty means /w/api.php.
	ScriptPath string
	// UserAgent overrides the default User-Agent.
	UserAgent string
	// HTTP configures the session's HTTP client (proxy, timeout).
	HTTP wikihttp.Options
	// RequestsPerSecond caps the API call rate. 0 means unlimited.
	RequestsPerSecond float64

	Logger *logging.Logger
}

// Session runs one upload: login token, login, edit token, then every file
// in order. A Session is single-use. It owns its own HTTP client and cookie
// jar, built when Run starts, so nothing carries over between sessions.
type Session struct {
	id   string
	opts Options
	log  *logging.Logger
	used atomic.Bool
}

// NewSession creates a session with a fresh id.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	id := uuid.NewString()
	return &Session{
		id:   id,
		opts: opts,
		log:  opts.Logger.WithStr("session", id),
	}
}

// ID returns the session id used in logs and events.
func (s *Session) ID() string {
	return s.id
}

// Run performs the session and returns one result per path, in input order.
//
// If the session fails before the upload loop (bad site, token or login
// failure) Run returns a single General result together with the error.
// Per-file failures never abort the loop and are not returned as an error;
// check the results. A second call returns ErrSessionUsed and no results.
func (s *Session) Run(ctx context.Context, req Request, creds Credentials, obs Observer) ([]Result, error) {
	if !s.used.CompareAndSwap(false, true) {
		return nil, ErrSessionUsed
	}
	if obs == nil {
		obs = ObserverFuncs{}
	}

	start := time.Now()
	s.log.Info().Str("site", creds.Site).Int("files", len(req.Paths)).Msg("Starting upload session")

	obs.Status(fmt.Sprintf("Connecting to %s...", creds.Site))

	client, err := s.connect(creds)
	if err != nil {
		return s.abort(obs, err), err
	}

	tokens, err := s.authenticate(ctx, client, creds)
	if err != nil {
		return s.abort(obs, err), err
	}
	obs.Status(fmt.Sprintf("Logged in as %s", creds.Username))

	results := s.uploadAll(ctx, client, req, tokens, obs)

	s.log.Info().
		Int("files", len(results)).
		Bool("failures", Failed(results)).
		Dur("elapsed", time.Since(start)).
		Msg("Upload session finished")

	obs.Status(StatusFinished)
	obs.Complete(results)
	return results, nil
}

// connect builds the HTTP client and API client for the site.
func (s *Session) connect(creds Credentials) (*mediawiki.Client, error) {
	endpoint, err := mediawiki.EndpointForSite(creds.Site, s.opts.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	httpOpts := s.opts.HTTP
	httpOpts.Logger = s.log
	if httpOpts.WarmupURL == "" {
		httpOpts.WarmupURL = endpoint
	}

	httpClient, err := wikihttp.NewSessionClient(httpOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	s.log.Debug().Str("endpoint", endpoint).Msg("Using API endpoint")
	client := mediawiki.NewClient(httpClient, endpoint, s.opts.UserAgent, s.log)
	client.SetRequestRate(s.opts.RequestsPerSecond)
	return client, nil
}

// authenticate runs the three pre-loop steps. Any failure is fatal.
func (s *Session) authenticate(ctx context.Context, client *mediawiki.Client, creds Credentials) (Tokens, error) {
	var tokens Tokens

	loginToken, err := client.LoginToken(ctx)
	if err != nil {
		return tokens, fmt.Errorf("%w: %w", ErrLoginToken, err)
	}
	tokens.Login = loginToken

	user, err := client.Login(ctx, creds.Username, creds.Password, loginToken)
	if err != nil {
		return tokens, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	s.log.Info().Str("user", user.UserName).Int("user_id", user.UserID).Msg("Logged in")

	csrf, err := client.CSRFToken(ctx)
	if err != nil {
		return tokens, fmt.Errorf("%w: %w", ErrCSRFToken, err)
	}
	tokens.CSRF = csrf

	return tokens, nil
}

// uploadAll is the per-file loop. It always visits every path.
func (s *Session) uploadAll(ctx context.Context, client *mediawiki.Client, req Request, tokens Tokens, obs Observer) []Result {
	total := len(req.Paths)
	results := make([]Result, 0, total)
	seen := make(map[string]string, total) // digest -> first target

	for i, path := range req.Paths {
		target := req.Overrides.Target(path)
		obs.Status(uploadingStatus(i+1, total, filepath.Base(path)))

		res := s.uploadOne(ctx, client, req, tokens, path, target)
		if res.Digest != "" {
			if first, ok := seen[res.Digest]; ok && first != target {
				s.log.Warn().Str("target", target).Str("same_as", first).Msg("File has the same content as an earlier file in this session")
			} else if !ok {
				seen[res.Digest] = target
			}
		}
		results = append(results, res)

		obs.Progress(percent(i+1, total))
	}

	return results
}

func (s *Session) uploadOne(ctx context.Context, client *mediawiki.Client, req Request, tokens Tokens, path, target string) Result {
	res := Result{Path: path, Target: target}
	log := s.log.WithStr("target", target)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to read file")
		return failed(res, err.Error())
	}
	res.Digest = digest(data)

	log.Debug().Int("bytes", len(data)).Str("blake3", res.Digest).Msg("Uploading")

	uploaded, err := client.Upload(ctx, mediawiki.UploadParams{
		Filename: target,
		Comment:  req.Summary,
		Text:     req.Description,
		Token:    tokens.CSRF,
		Data:     data,
	})
	if err != nil {
		detail := mediawiki.Detail(err)
		log.Error().Err(err).Msg("Upload failed")
		return failed(res, detail)
	}

	log.Info().Str("stored_as", uploaded.Filename).Msg("Uploaded")
	res.Success = true
	res.Message = successMessage(target)
	return res
}

// abort reports a fatal pre-loop failure: an error status, then a single
// general result.
func (s *Session) abort(obs Observer, err error) []Result {
	detail := fatalDetail(err)
	s.log.Error().Err(err).Msg("Upload session failed")

	results := []Result{{
		General: true,
		Message: generalMessage(detail),
		Detail:  detail,
	}}
	obs.Status(errorStatus(detail))
	obs.Complete(results)
	return results
}

// fatalDetail keeps the step prefix of a fatal error but prefers the
// wiki's own error text over the raw Go error below it.
func fatalDetail(err error) string {
	detail := mediawiki.Detail(err)
	if detail == err.Error() {
		return detail
	}
	for _, step := range []error{ErrConnect, ErrLoginToken, ErrLoginFailed, ErrCSRFToken} {
		if errors.Is(err, step) {
			return step.Error() + ": " + detail
		}
	}
	return detail
}

func failed(res Result, detail string) Result {
	res.Success = false
	res.Detail = detail
	res.Message = failureMessage(res.Target, detail)
	return res
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
