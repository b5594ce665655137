package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamichlol/wikiup/internal/config"
	"github.com/hamichlol/wikiup/internal/constants"
	"github.com/hamichlol/wikiup/internal/events"
	wikihttp "github.com/hamichlol/wikiup/internal/http"
	"github.com/hamichlol/wikiup/internal/manifest"
	"github.com/hamichlol/wikiup/internal/progress"
	"github.com/hamichlol/wikiup/internal/upload"
	"github.com/hamichlol/wikiup/internal/util/sanitize"
	ustrings "github.com/hamichlol/wikiup/internal/util/strings"
)

// ErrUploadFailed is returned when the session aborted or any file failed,
// so the process exits non-zero.
var ErrUploadFailed = errors.New("upload failed")

type uploadOptions struct {
	site         string
	username     string
	password     string
	description  string
	summary      string
	manifestPath string
	as           []string
	save         bool
	jsonOutput   bool
}

// jsonReport is the --json output document.
type jsonReport struct {
	SessionID string          `json:"session_id"`
	Site      string          `json:"site"`
	Failed    bool            `json:"failed"`
	Results   []upload.Result `json:"results"`
}

func newUploadCmd() *cobra.Command {
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload [files...]",
		Short: "Upload files to the wiki",
		Long: `Log in to the wiki and upload each file in order.

Each file is uploaded under its base name unless a target name is given with
--as or in a manifest. Files are uploaded with ignorewarnings set, so an
existing file of the same name is overwritten. A failing file does not stop
the files after it.

Arguments may be globs, including "**" for any depth. A file named twice is
uploaded twice; a glob does not repeat files already listed. Target names
are sent exactly as given.`,
		Example: `  wikiup upload scan1.png scan2.png
  wikiup upload 'scans/**/*.png' --summary "Cropped scans"
  wikiup upload photo.jpg --as "photo.jpg=Tel Aviv 1950.jpg"
  wikiup upload --manifest batch.yaml --json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.site, "site", "", "Wiki hostname or base URL (e.g. www.hamichlol.org.il)")
	cmd.Flags().StringVarP(&opts.username, "user", "u", "", "Wiki username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "Wiki password (prompted for when not set anywhere)")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "Text of the new file pages")
	cmd.Flags().StringVarP(&opts.summary, "summary", "s", "", "Edit summary")
	cmd.Flags().StringArrayVar(&opts.as, "as", nil, "Target name for a file, as path=Target (repeatable; empty Target reverts to the base name)")
	cmd.Flags().StringVarP(&opts.manifestPath, "manifest", "m", "", "YAML manifest listing files and target names")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save site, account, description and summary to the settings file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON instead of text")

	return cmd
}

func runUpload(cmd *cobra.Command, opts *uploadOptions, args []string) error {
	logger := GetLogger()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	settingsPath, err := config.ResolvePath(cfgFile)
	if err != nil {
		return err
	}
	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	settings.ApplyEnv()
	applyUploadFlags(cmd, opts, settings)

	req, err := buildRequest(cmd, opts, settings, args)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if settings.Password == "" && settings.UsesKeyring() {
		pw, err := config.KeyringPassword(settings)
		if err != nil {
			logger.Warn().Err(err).Msg("Keyring unavailable")
		}
		settings.Password = pw
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	if settings.Password == "" && stdinIsTerminal() {
		pw, err := promptSecret(reader, errOut, fmt.Sprintf("Password for %s at %s", settings.Username, settings.Site))
		if err != nil {
			return err
		}
		settings.Password = pw
	}
	if wikihttp.NeedsProxyPassword(settings.Proxy) && stdinIsTerminal() {
		pw, err := promptSecret(reader, errOut, "Proxy password")
		if err != nil {
			return err
		}
		settings.Proxy.Password = pw
	}

	creds := upload.Credentials{
		Site:     settings.Site,
		Username: settings.Username,
		Password: settings.Password,
	}
	if err := creds.Validate(); err != nil {
		return err
	}

	if opts.save {
		if err := config.Save(settings, settingsPath); err != nil {
			return err
		}
		logger.Info().Str("path", settingsPath).Msg("Settings saved")
	}

	session := upload.NewSession(upload.Options{
		ScriptPath: settings.ScriptPath,
		UserAgent:  settings.UserAgent,
		HTTP: wikihttp.Options{
			Proxy:   settings.Proxy,
			Timeout: time.Duration(settings.TimeoutSeconds) * time.Second,
		},
		RequestsPerSecond: settings.RequestsPerSecond,
		Logger:            logger,
	})

	renderer := progress.NewRenderer(errOut)
	if opts.jsonOutput {
		renderer = progress.NewQuietRenderer()
	}

	results := runWithEvents(cmd, session, req, creds, renderer)

	if opts.jsonOutput {
		if err := writeJSON(out, jsonReport{
			SessionID: session.ID(),
			Site:      creds.Site,
			Failed:    upload.Failed(results),
			Results:   results,
		}); err != nil {
			return err
		}
	} else {
		writeSummary(out, results)
	}

	return outcome(results)
}

// runWithEvents starts the session on its own goroutine and renders its
// event stream until it completes. The renderer is the only subscriber and
// reads until the completion event, which is the last one published, so the
// bus blocks rather than dropping status or progress lines.
func runWithEvents(cmd *cobra.Command, session *upload.Session, req upload.Request, creds upload.Credentials, renderer *progress.Renderer) []upload.Result {
	bus := events.NewBlockingEventBus(constants.EventBusDefaultBuffer)
	ch := bus.SubscribeAll()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		renderer.Consume(ch)
	}()

	results := <-upload.Start(GetContext(), session, req, creds, bus)

	// Closing ends the renderer when the session published nothing.
	bus.Close()
	<-rendered
	return results
}

// applyUploadFlags lets explicitly set flags override settings and env.
func applyUploadFlags(cmd *cobra.Command, opts *uploadOptions, s *config.Settings) {
	flags := cmd.Flags()
	if flags.Changed("site") {
		s.Site = opts.site
	}
	if flags.Changed("user") {
		s.Username = opts.username
	}
	if flags.Changed("password") {
		s.Password = opts.password
	}
	if flags.Changed("description") {
		s.Description = opts.description
	}
	if flags.Changed("summary") {
		s.Summary = opts.summary
	}
}

// buildRequest collects files from the manifest and the arguments, in that
// order, and applies target names: manifest entries first, then --as.
func buildRequest(cmd *cobra.Command, opts *uploadOptions, s *config.Settings, args []string) (upload.Request, error) {
	req := upload.Request{
		Description: s.Description,
		Summary:     s.Summary,
	}

	var paths []string
	overrides := upload.NewOverrides(nil)

	if opts.manifestPath != "" {
		m, err := manifest.Load(opts.manifestPath)
		if err != nil {
			return req, err
		}
		mpaths, err := m.Paths()
		if err != nil {
			return req, err
		}
		paths = append(paths, mpaths...)
		overrides = upload.NewOverrides(m.Overrides())

		if m.Description != "" && !cmd.Flags().Changed("description") {
			req.Description = m.Description
		}
		if m.Summary != "" && !cmd.Flags().Changed("summary") {
			req.Summary = m.Summary
		}
	}

	if len(args) > 0 {
		expanded, err := manifest.Expand(args)
		if err != nil {
			return req, err
		}
		paths = append(paths, expanded...)
	}

	assignments, err := parseAssignments(opts.as)
	if err != nil {
		return req, err
	}
	for _, a := range assignments {
		overrides = overrides.With(a.path, a.target)
	}

	for path, name := range overrides.Map() {
		if bad := sanitize.IllegalTitleChars(name); len(bad) > 0 {
			GetLogger().Warn().Str("path", path).Str("target", name).Str("characters", string(bad)).
				Msg("Target name contains characters the wiki does not allow in titles")
		}
		if clean := sanitize.TargetName(name); clean != name {
			GetLogger().Warn().Str("path", path).Str("target", name).Str("suggested", clean).
				Msg("Target name contains invisible characters or repeated spaces; sending it as given")
		}
	}

	req.Paths = paths
	req.Overrides = overrides
	return req, nil
}

type assignment struct {
	path   string
	target string
}

// parseAssignments parses --as values of the form path=Target. The path ends
// at the first "=". An empty Target is kept; it clears an override.
func parseAssignments(values []string) ([]assignment, error) {
	out := make([]assignment, 0, len(values))
	for _, v := range values {
		path, target, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("invalid --as value %q: expected path=Target", v)
		}
		out = append(out, assignment{path: path, target: strings.TrimSpace(target)})
	}
	return out, nil
}

func writeSummary(w io.Writer, results []upload.Result) {
	ok := 0
	for _, r := range results {
		fmt.Fprintln(w, r.Message)
		if r.Success {
			ok++
		}
	}
	if len(results) == 1 && results[0].General {
		return
	}
	fmt.Fprintf(w, "\n%d of %d %s uploaded\n", ok, len(results), ustrings.Pluralize("file", len(results)))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// outcome maps results to the command's error.
func outcome(results []upload.Result) error {
	failed := 0
	for _, r := range results {
		if r.General {
			return fmt.Errorf("%w: %s", ErrUploadFailed, r.Detail)
		}
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d %s failed", ErrUploadFailed, failed, len(results), ustrings.Pluralize("file", len(results)))
	}
	return nil
}
