package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestGenerator(t *testing.T, llm LLM) *Generator {
	t.Helper()
	g, err := NewGenerator(llm, 1000)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	return g
}

func TestLoadPrompts(t *testing.T) {
	catalog, err := loadPrompts()
	if err != nil {
		t.Fatalf("loadPrompts() error = %v", err)
	}
	if catalog.Flashcards.MaxTokens != 3000 || catalog.Quiz.MaxTokens != 2000 {
		t.Errorf("unexpected max tokens: %d / %d", catalog.Flashcards.MaxTokens, catalog.Quiz.MaxTokens)
	}
	if catalog.Quiz.Temperature != 0.7 {
		t.Errorf("quiz temperature = %v, want 0.7", catalog.Quiz.Temperature)
	}
	rendered := catalog.Quiz.Render(map[string]string{"Text": "photosynthesis"})
	if !strings.Contains(rendered, "photosynthesis") || strings.Contains(rendered, "{{.Text}}") {
		t.Errorf("placeholder not replaced: %q", rendered)
	}
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", "Here you go:\n[1,2]\nEnjoy!", `[1,2]`},
		{"object", "Result: {\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSONResponse(tt.in); got != tt.want {
				t.Errorf("CleanJSONResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeneratorFlashcards(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns sequential ids and drops empty cards", func(t *testing.T) {
		llm := &fakeLLM{responses: []string{"```json\n" + `[
			{"question": "What is ATP?", "answer": "Energy currency"},
			{"question": "", "answer": "orphan"},
			{"question": "Where is DNA?", "answer": "Nucleus"}
		]` + "\n```"}}
		g := newTestGenerator(t, llm)

		cards, err := g.Flashcards(ctx, "Cells store energy as ATP.")
		if err != nil {
			t.Fatalf("Flashcards() error = %v", err)
		}
		if len(cards) != 2 {
			t.Fatalf("len(cards) = %d, want 2", len(cards))
		}
		for i, c := range cards {
			if c.ID != i+1 {
				t.Errorf("cards[%d].ID = %d, want %d", i, c.ID, i+1)
			}
		}
		if !strings.Contains(llm.prompts[0], "Cells store energy as ATP.") {
			t.Error("prompt does not contain the input text")
		}
	})

	t.Run("empty text", func(t *testing.T) {
		g := newTestGenerator(t, &fakeLLM{})
		_, err := g.Flashcards(ctx, "   ")
		var genErr *GenerationError
		if !errors.As(err, &genErr) || genErr.Message != "Text content is required" {
			t.Fatalf("expected 'Text content is required', got %v", err)
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Error("expected ErrInvalidInput")
		}
	})

	t.Run("text too long", func(t *testing.T) {
		g := newTestGenerator(t, &fakeLLM{})
		_, err := g.Flashcards(ctx, strings.Repeat("a", 1001))
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unparsable response", func(t *testing.T) {
		g := newTestGenerator(t, &fakeLLM{responses: []string{"I cannot help with that."}})
		_, err := g.Flashcards(ctx, "text")
		var genErr *GenerationError
		if !errors.As(err, &genErr) || genErr.Message != "Failed to parse generated flashcards" {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		g := newTestGenerator(t, &fakeLLM{errs: []error{ErrProviderRequest}})
		_, err := g.Flashcards(ctx, "text")
		var genErr *GenerationError
		if !errors.As(err, &genErr) || genErr.Message != "Failed to generate flashcards" {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("provider not configured", func(t *testing.T) {
		g := newTestGenerator(t, unconfiguredLLM{name: "openai"})
		_, err := g.Flashcards(ctx, "text")
		if !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})
}

func TestParseQuiz(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		questions, err := ParseQuiz(`[
			{"question": "2+2?", "options": ["1","2","3","4"], "correctAnswer": 3},
			{"question": "Capital of France?", "options": ["Paris","Rome","Oslo","Bern"], "correctAnswer": 0}
		]`)
		if err != nil {
			t.Fatalf("ParseQuiz() error = %v", err)
		}
		if len(questions) != 2 || questions[0].ID != 1 || questions[1].ID != 2 {
			t.Fatalf("unexpected questions %+v", questions)
		}
		if questions[0].CorrectAnswer != 3 {
			t.Errorf("CorrectAnswer = %d, want 3", questions[0].CorrectAnswer)
		}
	})

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"not an array", `{"question": "x"}`, "Generated content is not an array"},
		{"three options", `[{"question": "q", "options": ["a","b","c"], "correctAnswer": 0}]`, "Invalid question format at index 0"},
		{"missing question", `[{"question": "ok", "options": ["a","b","c","d"], "correctAnswer": 1}, {"options": ["a","b","c","d"], "correctAnswer": 1}]`, "Invalid question format at index 1"},
		{"string answer", `[{"question": "q", "options": ["a","b","c","d"], "correctAnswer": "2"}]`, "Invalid question format at index 0"},
		{"answer out of range", `[{"question": "q", "options": ["a","b","c","d"], "correctAnswer": 4}]`, "Invalid correct answer index at question 0"},
		{"negative answer", `[{"question": "q", "options": ["a","b","c","d"], "correctAnswer": -1}]`, "Invalid correct answer index at question 0"},
		{"fractional answer", `[{"question": "q", "options": ["a","b","c","d"], "correctAnswer": 1.5}]`, "Invalid correct answer index at question 0"},
		{"garbage", `not json`, "Failed to parse generated questions as JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuiz(tt.raw)
			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if genErr.Message != tt.want {
				t.Errorf("message = %q, want %q", genErr.Message, tt.want)
			}
		})
	}
}

func TestNormalizeCitationFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "MLA", true},
		{"apa", "APA", true},
		{"harvard", "Harvard", true},
		{" IEEE ", "IEEE", true},
		{"Turabian", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCitationFormat(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeCitationFormat(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGeneratorCitations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 4, 0, 0, 0, 0, time.UTC)

	t.Run("formats links", func(t *testing.T) {
		llm := &fakeLLM{responses: []string{`["Doe, J. Example. 2024.", "Roe, R. Sample. 2023."]`}}
		g := newTestGenerator(t, llm)
		citations, err := g.Citations(ctx, []string{" https://a.example ", "", "https://b.example"}, "apa", now)
		if err != nil {
			t.Fatalf("Citations() error = %v", err)
		}
		if len(citations) != 2 {
			t.Fatalf("len(citations) = %d, want 2", len(citations))
		}
		prompt := llm.prompts[0]
		for _, want := range []string{"APA", "1. https://a.example", "2. https://b.example", "May 4, 2025"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})

	t.Run("requires a link", func(t *testing.T) {
		g := newTestGenerator(t, &fakeLLM{})
		_, err := g.Citations(ctx, []string{" ", ""}, "MLA", now)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("too many links", func(t *testing.T) {
		g := newTestGenerator(t, &fakeLLM{})
		links := make([]string, MaxCitationLinks+1)
		for i := range links {
			links[i] = "https://example.com"
		}
		_, err := g.Citations(ctx, links, "MLA", now)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		g := newTestGenerator(t, &fakeLLM{})
		_, err := g.Citations(ctx, []string{"https://a.example"}, "Turabian", now)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}
