package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed prompts/*.md
var embedded embed.FS

// LoadDefaults loads the prompts compiled into the binary.
func LoadDefaults() ([]*Prompt, error) {
	sub, err := fs.Sub(embedded, "prompts")
	if err != nil {
		return nil, fmt.Errorf("embedded prompts: %w", err)
	}
	return LoadFS(sub, "embedded")
}

// DefaultRegistry builds a registry from the embedded prompts.
func DefaultRegistry() (*InMemoryRegistry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	return NewRegistry(prompts)
}

// NewRegistryWithOverrides builds the embedded registry and lets prompts found in
// dir replace embedded ones with the same slug. An empty dir uses the defaults only.
func NewRegistryWithOverrides(dir string) (*InMemoryRegistry, error) {
	reg, err := DefaultRegistry()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) == "" {
		return reg, nil
	}
	overrides, err := LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	if err := reg.Override(overrides); err != nil {
		return nil, err
	}
	return reg, nil
}
