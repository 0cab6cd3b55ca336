// Package models holds the registry of selectable model ids. The registry is
// read-only once loaded.
package models

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultModels []byte

// ErrUnknownModel is returned by Get for ids not in the registry.
var ErrUnknownModel = errors.New("models: unknown model")

// Model describes one selectable model.
type Model struct {
	ID           string   `yaml:"id" toml:"id"`
	Name         string   `yaml:"name" toml:"name"`
	Description  string   `yaml:"description" toml:"description"`
	Speed        string   `yaml:"speed" toml:"speed"`
	Capabilities []string `yaml:"capabilities" toml:"capabilities"`
	Recommended  bool     `yaml:"recommended" toml:"recommended"`
}

// HasCapability reports whether the model lists c.
func (m Model) HasCapability(c string) bool {
	return slices.Contains(m.Capabilities, c)
}

type file struct {
	Models []Model `yaml:"models" toml:"models"`
}

// Registry is an immutable set of models keyed by id.
type Registry struct {
	byID map[string]Model
	ids  []string
}

// New builds a registry. Ids must be non-empty and unique.
func New(models ...Model) (*Registry, error) {
	r := &Registry{byID: make(map[string]Model, len(models))}

	for _, m := range models {
		if m.ID == "" {
			return nil, errors.New("models: model id is required")
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("models: duplicate model id %q", m.ID)
		}
		m.Capabilities = slices.Clone(m.Capabilities)
		r.byID[m.ID] = m
		r.ids = append(r.ids, m.ID)
	}

	slices.Sort(r.ids)

	return r, nil
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := Parse(defaultModels, FormatYAML)
	if err != nil {
		panic(fmt.Sprintf("models: built-in registry: %v", err))
	}
	return r
}

// Format is a registry file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("models: unsupported registry file %q", path)
	}
}

// Load reads a registry from a YAML or TOML file, chosen by extension.
func Load(path string) (*Registry, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return nil, fmt.Errorf("models: load registry: %w", err)
	}

	return Parse(data, format)
}

// Parse decodes a registry document.
func Parse(data []byte, format Format) (*Registry, error) {
	var f file

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("models: parse registry: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("models: parse registry: %w", err)
		}
	default:
		return nil, fmt.Errorf("models: unknown format %q", format)
	}

	if len(f.Models) == 0 {
		return nil, errors.New("models: registry is empty")
	}

	return New(f.Models...)
}

// Get returns the model with the given id.
func (r *Registry) Get(id string) (Model, error) {
	m, ok := r.byID[id]
	if !ok {
		return Model{}, fmt.Errorf("%w %q", ErrUnknownModel, id)
	}
	return m, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns all models sorted by id.
func (r *Registry) List() []Model {
	out := make([]Model, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Recommended returns the first recommended model by id, or the first model
// when none is flagged. The bool is false for an empty registry.
func (r *Registry) Recommended() (Model, bool) {
	for _, id := range r.ids {
		if m := r.byID[id]; m.Recommended {
			return m, true
		}
	}
	if len(r.ids) == 0 {
		return Model{}, false
	}
	return r.byID[r.ids[0]], true
}
