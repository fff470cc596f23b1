package prompt

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrPromptNotFound is returned for slugs the registry does not hold.
var ErrPromptNotFound = errors.New("prompt not found")

// Registry provides access to prompt definitions.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
}

// InMemoryRegistry stores prompts by slug. It is built once at startup and
// read concurrently afterwards.
type InMemoryRegistry struct {
	prompts map[string]*Prompt
}

// NewRegistry builds a registry, rejecting duplicate slugs.
func NewRegistry(prompts []*Prompt) (*InMemoryRegistry, error) {
	reg := &InMemoryRegistry{prompts: make(map[string]*Prompt, len(prompts))}
	for _, p := range prompts {
		if p == nil {
			continue
		}
		if prev, ok := reg.prompts[p.Config.Slug]; ok {
			return nil, fmt.Errorf("duplicate prompt slug %q in %s and %s", p.Config.Slug, prev.Source, p.Source)
		}
		reg.prompts[p.Config.Slug] = p
	}
	return reg, nil
}

// Override replaces or adds prompts by slug. Duplicates within prompts are rejected.
func (r *InMemoryRegistry) Override(prompts []*Prompt) error {
	overrides, err := NewRegistry(prompts)
	if err != nil {
		return err
	}
	maps.Copy(r.prompts, overrides.prompts)
	return nil
}

// Get returns the prompt for slug.
func (r *InMemoryRegistry) Get(slug string) (*Prompt, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	p, ok := r.prompts[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPromptNotFound, slug)
	}
	return p, nil
}

// Render looks up slug and renders it with vars.
func (r *InMemoryRegistry) Render(slug string, vars map[string]string) (string, error) {
	p, err := r.Get(slug)
	if err != nil {
		return "", err
	}
	return p.Render(vars)
}

// Missing returns the slugs, in argument order, that the registry does not hold.
func (r *InMemoryRegistry) Missing(slugs ...string) []string {
	var missing []string
	for _, slug := range slugs {
		if _, err := r.Get(slug); err != nil {
			missing = append(missing, slug)
		}
	}
	return missing
}

// List returns prompts sorted by slug.
func (r *InMemoryRegistry) List() []*Prompt {
	if r == nil {
		return nil
	}
	result := make([]*Prompt, 0, len(r.prompts))
	for _, slug := range slices.Sorted(maps.Keys(r.prompts)) {
		result = append(result, r.prompts[slug])
	}
	return result
}
