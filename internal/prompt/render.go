package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Render substitutes {{var}} placeholders and resolves {{#if var}}...{{else}}...{{/if}}
// blocks. Missing required variables are an error.
func (p *Prompt) Render(vars map[string]string) (string, error) {
	if p == nil {
		return "", errors.New("prompt is required")
	}

	merged := make(map[string]string, len(vars)+len(p.Config.Defaults))
	for key, value := range p.Config.Defaults {
		merged[key] = value
	}
	for key, value := range vars {
		if strings.TrimSpace(value) == "" {
			continue
		}
		merged[key] = value
	}

	for _, name := range p.Config.Input.RequiredVariables {
		if strings.TrimSpace(merged[name]) == "" {
			return "", fmt.Errorf("prompt %s: missing required variable %q", p.Config.Slug, name)
		}
	}

	text := applyConditionals(p.Config.Template, merged)
	text = applyVars(text, merged)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("prompt %s rendered empty", p.Config.Slug)
	}
	return text, nil
}

func applyVars(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// applyConditionals keeps the if-branch when the variable is present and non-empty.
func applyConditionals(template string, vars map[string]string) string {
	result := template
	for {
		start := strings.Index(result, "{{#if")
		if start == -1 {
			break
		}
		tagEnd := strings.Index(result[start:], "}}")
		if tagEnd == -1 {
			break
		}
		tagEnd += start

		varName := strings.TrimSpace(result[start+len("{{#if") : tagEnd])
		blockStart := tagEnd + 2

		elseStart, elseEnd, endStart, endEnd := findConditionalBlock(result, blockStart)
		if endStart == -1 {
			break
		}

		ifContent := result[blockStart:endStart]
		elseContent := ""
		if elseStart != -1 {
			ifContent = result[blockStart:elseStart]
			elseContent = result[elseEnd:endStart]
		}

		replacement := elseContent
		if value, ok := vars[varName]; ok && strings.TrimSpace(value) != "" {
			replacement = ifContent
		}

		result = result[:start] + replacement + result[endEnd:]
	}
	return result
}

func findConditionalBlock(input string, start int) (int, int, int, int) {
	depth := 0
	elseStart := -1
	elseEnd := -1

	pos := start
	for {
		openIdx := strings.Index(input[pos:], "{{")
		if openIdx == -1 {
			return -1, -1, -1, -1
		}
		openIdx += pos

		closeIdx := strings.Index(input[openIdx:], "}}")
		if closeIdx == -1 {
			return -1, -1, -1, -1
		}
		closeIdx += openIdx

		tag := strings.TrimSpace(input[openIdx+2 : closeIdx])
		switch {
		case tag == "#if" || strings.HasPrefix(tag, "#if "):
			depth++
		case tag == "/if":
			if depth == 0 {
				return elseStart, elseEnd, openIdx, closeIdx + 2
			}
			depth--
		case tag == "else" && depth == 0 && elseStart == -1:
			elseStart = openIdx
			elseEnd = closeIdx + 2
		}

		pos = closeIdx + 2
	}
}
