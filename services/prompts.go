package services

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed prompts/flashcards.yaml
var flashcardsPromptYAML []byte

//go:embed prompts/quiz.yaml
var quizPromptYAML []byte

//go:embed prompts/citation.yaml
var citationPromptYAML []byte

// Prompt is one entry of the embedded prompt catalogue.
type Prompt struct {
	SystemPrompt string  `yaml:"system_prompt"`
	UserPrompt   string  `yaml:"user_prompt"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// Render replaces {{.Key}} placeholders in the user prompt.
func (p Prompt) Render(vars map[string]string) string {
	out := p.UserPrompt
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{."+k+"}}", v)
	}
	return out
}

func (p Prompt) Options() CompletionOptions {
	return CompletionOptions{Temperature: p.Temperature, MaxTokens: p.MaxTokens}
}

type promptCatalog struct {
	Flashcards Prompt
	Quiz       Prompt
	Citation   Prompt
}

func loadPrompts() (promptCatalog, error) {
	var catalog promptCatalog
	for _, entry := range []struct {
		name   string
		data   []byte
		target *Prompt
	}{
		{"flashcards", flashcardsPromptYAML, &catalog.Flashcards},
		{"quiz", quizPromptYAML, &catalog.Quiz},
		{"citation", citationPromptYAML, &catalog.Citation},
	} {
		if err := yaml.Unmarshal(entry.data, entry.target); err != nil {
			return promptCatalog{}, fmt.Errorf("error parsing %s prompt yaml: %w", entry.name, err)
		}
	}
	return catalog, nil
}
