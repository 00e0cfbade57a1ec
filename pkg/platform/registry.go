package platform

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinFS embed.FS

// Registry holds the known platform profiles by name.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewRegistry returns a registry preloaded with the built-in profiles.
func NewRegistry() (*Registry, error) {
	r := &Registry{profiles: make(map[string]*Profile)}

	entries, err := builtinFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("reading built-in profiles: %w", err)
	}
	for _, e := range entries {
		data, err := builtinFS.ReadFile("profiles/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading built-in profile %s: %w", e.Name(), err)
		}
		if err := r.add(data); err != nil {
			return nil, fmt.Errorf("built-in profile %s: %w", e.Name(), err)
		}
	}
	return r, nil
}

// add parses and validates one profile document and stores it by name.
func (r *Registry) add(data []byte) error {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.profiles[p.Name] = &p
	r.mu.Unlock()
	return nil
}

// Profile returns a profile by name.
func (r *Registry) Profile(name string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	return p, ok
}

// Names returns all registered profile names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir loads every .yaml or .yml file in dir as a profile,
// overriding any registered profile with the same name. A missing
// directory is not an error: the built-ins simply stand.
func (r *Registry) LoadDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading profile directory %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading profile %s: %w", path, err)
		}
		if err := r.add(data); err != nil {
			return fmt.Errorf("profile %s: %w", path, err)
		}
	}
	return nil
}

// BuiltinNames returns the names of the embedded profiles without
// constructing a registry.
func BuiltinNames() ([]string, error) {
	entries, err := builtinFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("reading built-in profiles: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names, nil
}
