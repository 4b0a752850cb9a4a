package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var defaultSchemas embed.FS

// Registry holds the loaded registry descriptors.
type Registry struct {
	mu         sync.RWMutex
	descs      map[string]*Descriptor
	schemasDir string
}

// NewRegistry creates a registry. schemasDir may be empty; when set, YAML
// files there override or extend the embedded defaults on Load.
func NewRegistry(schemasDir string) *Registry {
	return &Registry{
		descs:      make(map[string]*Descriptor),
		schemasDir: schemasDir,
	}
}

// Load reads the embedded descriptors, then any *.yaml in the override
// directory. A directory descriptor with an embedded ID replaces it.
func (r *Registry) Load() error {
	descs := make(map[string]*Descriptor)

	entries, err := fs.ReadDir(defaultSchemas, "schemas")
	if err != nil {
		return fmt.Errorf("read embedded schemas: %w", err)
	}
	for _, e := range entries {
		data, err := defaultSchemas.ReadFile("schemas/" + e.Name())
		if err != nil {
			return fmt.Errorf("read embedded schema %s: %w", e.Name(), err)
		}
		d, err := Parse(data)
		if err != nil {
			return fmt.Errorf("embedded schema %s: %w", e.Name(), err)
		}
		descs[d.ID] = d
	}

	if r.schemasDir != "" {
		dirEntries, err := os.ReadDir(r.schemasDir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read schemas dir %s: %w", r.schemasDir, err)
		}
		for _, e := range dirEntries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(r.schemasDir, e.Name()))
			if err != nil {
				return fmt.Errorf("read schema %s: %w", e.Name(), err)
			}
			d, err := Parse(data)
			if err != nil {
				return fmt.Errorf("schema %s: %w", e.Name(), err)
			}
			descs[d.ID] = d
		}
	}

	r.mu.Lock()
	r.descs = descs
	r.mu.Unlock()
	return nil
}

// Reload re-reads all descriptors from disk (hot reload).
func (r *Registry) Reload() error {
	return r.Load()
}

// Parse unmarshals and validates one YAML descriptor.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Get returns the descriptor for a registry ID.
func (r *Registry) Get(id string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[id]
	if !ok {
		return nil, fmt.Errorf("unknown registry: %q", id)
	}
	return d, nil
}

// All returns all descriptors sorted by ID.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.descs))
	for _, d := range r.descs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of loaded registries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descs)
}
