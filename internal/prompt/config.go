package prompt

// Config describes a prompt definition loaded from YAML frontmatter.
type Config struct {
	Slug        string    `yaml:"slug" json:"slug" validate:"required,lowercase"`
	Name        string    `yaml:"name,omitempty" json:"name,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string    `yaml:"version,omitempty" json:"version,omitempty"`
	Author      string    `yaml:"author,omitempty" json:"author,omitempty"`
	Updated     string    `yaml:"updated,omitempty" json:"updated,omitempty"`
	Input       InputSpec `yaml:"input,omitempty" json:"input,omitempty"`
	Template    string    `yaml:"template,omitempty" json:"template,omitempty" validate:"required"`

	// Defaults supplies values for optional variables that the caller leaves empty.
	Defaults map[string]string `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// InputSpec defines prompt input requirements.
type InputSpec struct {
	RequiredVariables []string `yaml:"required_variables,omitempty" json:"required_variables,omitempty"`
	OptionalVariables []string `yaml:"optional_variables,omitempty" json:"optional_variables,omitempty"`
	AcceptsImages     bool     `yaml:"accepts_images,omitempty" json:"accepts_images,omitempty"`
	ImageTypes        []string `yaml:"image_types,omitempty" json:"image_types,omitempty" validate:"dive,startswith=image/"`
	MaxImages         int      `yaml:"max_images,omitempty" json:"max_images,omitempty" validate:"gte=0"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}
