package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)
	require.Len(t, prompts, 2)

	reg, err := NewRegistry(prompts)
	require.NoError(t, err)

	for _, slug := range []string{"age-progression", "appearance"} {
		prompt, err := reg.Get(slug)
		require.NoError(t, err)
		require.NotEmpty(t, prompt.Config.Template)
		require.True(t, prompt.Config.Input.AcceptsImages)
	}
}

func TestLoadRequiresFrontmatter(t *testing.T) {
	_, err := Load("bare.md", []byte("just a body"))
	require.Error(t, err)
}

func TestLoadRequiresSlug(t *testing.T) {
	_, err := Load("noslug.md", []byte("---\nname: x\n---\nbody"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Slug")
}

func TestRenderAgeProgression(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	text, err := reg.Render("age-progression", nil)
	require.NoError(t, err)
	require.Contains(t, text, "about 20 years older")
	require.Contains(t, text, "photorealistic")
	require.NotContains(t, text, "{{")

	styled, err := reg.Render("age-progression", map[string]string{"years": "40", "style": "charcoal sketch"})
	require.NoError(t, err)
	require.Contains(t, styled, "about 40 years older")
	require.Contains(t, styled, "charcoal sketch")
	require.NotContains(t, styled, "photorealistic")
}

func TestRenderMissingRequired(t *testing.T) {
	prompt, err := Load("req.md", []byte("---\nslug: req\ninput:\n  required_variables: [subject]\n---\nHello {{subject}}"))
	require.NoError(t, err)

	_, err = prompt.Render(map[string]string{})
	require.Error(t, err)

	text, err := prompt.Render(map[string]string{"subject": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "Hello Ada", text)
}

func TestRegistryOverridesFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "appearance.md"),
		[]byte("---\nslug: appearance\n---\nCustom appearance prompt"), 0o600))

	reg, err := NewRegistryWithOverrides(dir)
	require.NoError(t, err)

	text, err := reg.Render("appearance", nil)
	require.NoError(t, err)
	require.Equal(t, "Custom appearance prompt", text)

	_, err = reg.Get("age-progression")
	require.NoError(t, err)
	require.Len(t, reg.List(), 2)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	a, err := Load("a.md", []byte("---\nslug: dup\n---\none"))
	require.NoError(t, err)
	b, err := Load("b.md", []byte("---\nslug: dup\n---\ntwo"))
	require.NoError(t, err)

	_, err = NewRegistry([]*Prompt{a, b})
	require.Error(t, err)
}

func TestSplitFrontmatter(t *testing.T) {
	cases := []struct {
		name  string
		input string
		front string
		body  string
		err   bool
	}{
		{name: "basic", input: "---\nslug: a\n---\nbody", front: "\nslug: a\n", body: "\nbody"},
		{name: "empty front", input: "---\n---\nbody", front: "\n", body: "\nbody"},
		{name: "rule in body", input: "---\nslug: a\n---\nabove\n---\nbelow", front: "\nslug: a\n", body: "\nabove\n---\nbelow"},
		{name: "inline dashes", input: "---\nnote: a---b\n---\nx", front: "\nnote: a---b\n", body: "\nx"},
		{name: "unterminated", input: "---\nslug: a\nbody", err: true},
		{name: "no fence", input: "slug: a", err: true},
		{name: "fence with text", input: "---yaml\nslug: a\n---\n", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			front, body, err := splitFrontmatter([]byte(tc.input))
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.front, string(front))
			require.Equal(t, tc.body, string(body))
		})
	}
}

func TestRegistryMissing(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	require.Empty(t, reg.Missing("age-progression", "appearance"))
	require.Equal(t, []string{"sketch"}, reg.Missing("appearance", "sketch"))

	_, err = reg.Get("sketch")
	require.ErrorIs(t, err, ErrPromptNotFound)
}

func TestOverrideRejectsDuplicateOverrides(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	a, err := Load("a.md", []byte("---\nslug: appearance\n---\none"))
	require.NoError(t, err)
	b, err := Load("b.md", []byte("---\nslug: appearance\n---\ntwo"))
	require.NoError(t, err)

	require.Error(t, reg.Override([]*Prompt{a, b}))
}

func TestLoadFromDirRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "prompt.md")
	require.NoError(t, os.WriteFile(file, []byte("---\nslug: x\n---\nx"), 0o600))

	_, err := LoadFromDir(file)
	require.Error(t, err)
}
