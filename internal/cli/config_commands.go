// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hamichlol/wikiup/internal/config"
	"github.com/hamichlol/wikiup/internal/mediawiki"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage wikiup settings",
		Long: `Settings management commands for wikiup.

Commands:
  init  - Interactive settings setup
  show  - Display current settings
  set   - Change one setting
  path  - Show settings file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize settings interactively",
		Long: `Interactive settings setup for wikiup.

The settings are saved to ~/.config/wikiup/settings.ini unless --config is
given. The password is stored in clear text with 0600 permissions; leave it
empty to be prompted on every upload instead.

Use --force to overwrite existing settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			settingsPath, err := config.ResolvePath(cfgFile)
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(settingsPath); err == nil {
					fmt.Fprintf(out, "Settings already exist at: %s\n", settingsPath)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view them.")
					return nil
				}
			}

			s, err := config.Load(settingsPath)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "wikiup Settings Setup")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			reader := bufio.NewReader(cmd.InOrStdin())

			if s.Site, err = promptLine(reader, out, "Site", s.Site); err != nil {
				return err
			}
			for s.Username == "" {
				if s.Username, err = promptLine(reader, out, "Username (required)", ""); err != nil {
					return err
				}
				if s.Username == "" {
					fmt.Fprintln(out, "  Error: username is required")
				}
			}
			if s.Password, err = promptSecret(reader, out, "Password (empty to prompt on upload)"); err != nil {
				return err
			}
			if s.Description, err = promptLine(reader, out, "Description", s.Description); err != nil {
				return err
			}
			if s.Summary, err = promptLine(reader, out, "Summary", s.Summary); err != nil {
				return err
			}

			fmt.Fprintln(out)
			configureProxy, err := promptLine(reader, out, "Configure proxy? [y/N]", "")
			if err != nil {
				return err
			}
			if p := strings.ToLower(configureProxy); p == "y" || p == "yes" {
				if err := promptProxy(reader, out, s); err != nil {
					return err
				}
			}

			// An empty password is allowed here; upload prompts for it.
			check := *s
			if check.Password == "" {
				check.Password = "-"
			}
			if err := check.Validate(); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}

			if err := config.Save(s, settingsPath); err != nil {
				return err
			}
			logger.Info().Str("path", settingsPath).Msg("Settings saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Settings saved to: %s\n", settingsPath)
			fmt.Fprintln(out, "Upload with: wikiup upload <files>")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing settings")

	return cmd
}

func promptProxy(reader *bufio.Reader, out io.Writer, s *config.Settings) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Proxy Configuration")
	fmt.Fprintln(out, "-------------------")
	fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")

	mode, err := promptLine(reader, out, "Proxy mode", "system")
	if err != nil {
		return err
	}
	if err := s.Set("proxy.mode", mode); err != nil {
		return err
	}
	if mode != "basic" && mode != "ntlm" {
		return nil
	}

	if s.Proxy.Host, err = promptLine(reader, out, "Proxy host", s.Proxy.Host); err != nil {
		return err
	}
	port, err := promptLine(reader, out, "Proxy port", "8080")
	if err != nil {
		return err
	}
	if v, err := strconv.Atoi(port); err == nil && v > 0 {
		s.Proxy.Port = v
	}
	if s.Proxy.User, err = promptLine(reader, out, "Proxy user (empty for none)", s.Proxy.User); err != nil {
		return err
	}
	return nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current settings",
		Long: `Display the current settings.

This command shows the merged settings from:
  1. Settings file (~/.config/wikiup/settings.ini)
  2. Environment variables (WIKIUP_SITE, WIKIUP_USERNAME, WIKIUP_PASSWORD)

Passwords are masked unless --reveal is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			settingsPath, err := config.ResolvePath(cfgFile)
			if err != nil {
				return err
			}
			s, err := config.Load(settingsPath)
			if err != nil {
				return err
			}
			s.ApplyEnv()

			fmt.Fprintln(out, "Current Settings")
			fmt.Fprintln(out, "================")
			for _, key := range config.Keys() {
				v, err := s.Get(key, reveal)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %-16s %s\n", key+":", v)
			}
			fmt.Fprintln(out)

			if endpoint, err := mediawiki.EndpointForSite(s.Site, s.ScriptPath); err == nil {
				fmt.Fprintf(out, "API endpoint: %s\n", endpoint)
			}
			fmt.Fprintf(out, "Settings file: %s\n", settingsPath)
			if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show passwords in clear text")

	return cmd
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting",
		Long: `Change one setting and save the settings file.

Keys: ` + strings.Join(config.Keys(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settingsPath, err := config.ResolvePath(cfgFile)
			if err != nil {
				return err
			}
			s, err := config.Load(settingsPath)
			if err != nil {
				return err
			}
			if err := s.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(s, settingsPath); err != nil {
				return err
			}

			shown, _ := s.Get(args[0], false)
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", strings.ToLower(args[0]), shown)
			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show settings file path",
		Long:  `Display the path to the settings file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			settingsPath, err := config.ResolvePath(cfgFile)
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default settings path:")
			} else {
				fmt.Fprintln(out, "Settings path (from --config flag):")
			}

			fmt.Fprintf(out, "  %s\n", settingsPath)
			fmt.Fprintln(out)

			if fileInfo, err := os.Stat(settingsPath); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", fileInfo.Size())
				fmt.Fprintf(out, "Modified: %s\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a settings file with: wikiup config init")
			}

			return nil
		},
	}

	return cmd
}
