package upload

import (
	"path/filepath"
)

// Overrides maps source paths to target names on the wiki. The value is
// immutable: With returns a modified copy and leaves the receiver alone, so
// a request can be handed to a running session while the caller keeps
// editing its own copy. The zero value is an empty map.
type Overrides struct {
	m map[string]string
}

// NewOverrides copies m. Names are kept verbatim; empty entries are skipped.
func NewOverrides(m map[string]string) Overrides {
	o := Overrides{m: make(map[string]string, len(m))}
	for path, name := range m {
		if name == "" {
			continue
		}
		o.m[key(path)] = name
	}
	return o
}

// With returns a copy with path mapped to name, verbatim. Only the empty
// string removes the entry; removing an absent entry is a no-op.
func (o Overrides) With(path, name string) Overrides {
	next := Overrides{m: make(map[string]string, len(o.m)+1)}
	for k, v := range o.m {
		next.m[k] = v
	}
	if name == "" {
		delete(next.m, key(path))
	} else {
		next.m[key(path)] = name
	}
	return next
}

// Lookup returns the override for path, if any.
func (o Overrides) Lookup(path string) (string, bool) {
	name, ok := o.m[key(path)]
	return name, ok
}

// Target returns the remote name for path: the override when set,
// otherwise the basename of path.
func (o Overrides) Target(path string) string {
	if name, ok := o.Lookup(path); ok {
		return name
	}
	return filepath.Base(path)
}

// Len returns the number of overrides.
func (o Overrides) Len() int {
	return len(o.m)
}

// Map returns a copy of the entries.
func (o Overrides) Map() map[string]string {
	out := make(map[string]string, len(o.m))
	for k, v := range o.m {
		out[k] = v
	}
	return out
}

func key(path string) string {
	return filepath.Clean(path)
}
