package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoMatch is returned when a glob matches no files.
var ErrNoMatch = errors.New("pattern matched no files")

// IsGlob reports whether arg contains glob syntax.
func IsGlob(arg string) bool {
	return strings.ContainsAny(arg, "*?[{")
}

// Expand turns file arguments into paths. Plain paths pass through
// untouched, even when the file does not exist, so a missing file becomes a
// per-file failure of the upload instead of aborting it. Globs, including
// "**", expand to the regular files they match in lexical order. A plain
// path given twice is uploaded twice; a glob skips files already listed.
func Expand(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	add := func(p string) {
		seen[filepath.Clean(p)] = true
		out = append(out, p)
	}

	for _, arg := range args {
		if !IsGlob(arg) {
			add(arg)
			continue
		}

		pattern := filepath.ToSlash(arg)
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, doublestar.ErrBadPattern)
		}

		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to expand %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%q: %w", arg, ErrNoMatch)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[filepath.Clean(m)] {
				add(m)
			}
		}
	}

	return out, nil
}
