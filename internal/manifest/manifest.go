// Package manifest reads upload manifests and expands file arguments.
//
// A manifest lists the files of one upload run with optional target names:
//
//	description: "{{Information}}"
//	summary: bulk upload
//	files:
//	  - path: scans/a.png
//	    target: Better name.png
//	  - path: scans/*.jpg
//
// Relative paths are resolved against the manifest's directory. A path may be
// a glob; a target on a glob entry is rejected since it would give every
// match the same name.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML document.
type Manifest struct {
	Description string  `yaml:"description,omitempty"`
	Summary     string  `yaml:"summary,omitempty"`
	Files       []Entry `yaml:"files"`
}

// Entry is one file of a manifest.
type Entry struct {
	Path   string `yaml:"path"`
	Target string `yaml:"target,omitempty"`
}

var (
	ErrEmptyManifest = errors.New("manifest lists no files")
	ErrGlobTarget    = errors.New("a target name cannot be set on a glob entry")
)

// Load reads and validates the manifest at path, resolving relative file
// paths against its directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Files {
		if !filepath.IsAbs(m.Files[i].Path) {
			m.Files[i].Path = filepath.Join(base, m.Files[i].Path)
		}
	}

	return &m, nil
}

// Validate checks the entries.
func (m *Manifest) Validate() error {
	if len(m.Files) == 0 {
		return ErrEmptyManifest
	}
	for i, e := range m.Files {
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("files[%d]: path is required", i)
		}
		if e.Target != "" && IsGlob(e.Path) {
			return fmt.Errorf("files[%d] (%s): %w", i, e.Path, ErrGlobTarget)
		}
	}
	return nil
}

// Paths expands the entries to file paths in manifest order.
func (m *Manifest) Paths() ([]string, error) {
	patterns := make([]string, len(m.Files))
	for i, e := range m.Files {
		patterns[i] = e.Path
	}
	return Expand(patterns)
}

// Overrides returns the target names set in the manifest, keyed by path.
func (m *Manifest) Overrides() map[string]string {
	out := make(map[string]string)
	for _, e := range m.Files {
		if t := strings.TrimSpace(e.Target); t != "" {
			out[e.Path] = t
		}
	}
	return out
}

// Save writes m as YAML.
func Save(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
