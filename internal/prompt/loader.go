package prompt

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

var frontmatterFence = []byte("---")

// Load parses and validates a prompt definition from markdown with YAML frontmatter.
// The markdown body becomes the template when the frontmatter does not set one.
func Load(source string, data []byte) (*Prompt, error) {
	front, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(front, &cfg); err != nil {
		return nil, fmt.Errorf("parse prompt %s: invalid frontmatter: %w", source, err)
	}
	cfg.Slug = strings.TrimSpace(cfg.Slug)
	if strings.TrimSpace(cfg.Template) == "" {
		cfg.Template = strings.TrimSpace(string(body))
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate prompt %s: %w", source, err)
	}
	return &Prompt{Config: cfg, Source: source}, nil
}

// LoadFS loads every *.md file at the root of fsys, in lexical order.
func LoadFS(fsys fs.FS, label string) ([]*Prompt, error) {
	names, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	prompts := make([]*Prompt, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", name, err)
		}
		p, err := Load(path.Join(label, name), data)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}

// LoadFromDir loads the prompt files in an operator-provided directory.
func LoadFromDir(dir string) ([]*Prompt, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompts dir %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir), dir)
}

// splitFrontmatter separates the leading "---" fenced YAML block from the body.
func splitFrontmatter(data []byte) (front, body []byte, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, fmt.Errorf("empty prompt")
	}
	rest, ok := bytes.CutPrefix(trimmed, frontmatterFence)
	if !ok {
		return nil, nil, fmt.Errorf("missing frontmatter")
	}
	rest = bytes.TrimLeft(rest, " \t")
	if len(rest) == 0 || (rest[0] != '\n' && rest[0] != '\r') {
		return nil, nil, fmt.Errorf("missing frontmatter")
	}

	// The closing fence must sit on its own line.
	for offset := 0; offset < len(rest); {
		idx := bytes.Index(rest[offset:], frontmatterFence)
		if idx < 0 {
			break
		}
		start := offset + idx
		end := start + len(frontmatterFence)
		lineStart := start == 0 || rest[start-1] == '\n'
		lineEnd := end == len(rest) || rest[end] == '\n' || rest[end] == '\r'
		if lineStart && lineEnd {
			return rest[:start], rest[end:], nil
		}
		offset = end
	}
	return nil, nil, fmt.Errorf("unterminated frontmatter")
}
