package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const MaxCitationLinks = 20

var CitationFormats = []string{"MLA", "APA", "Harvard", "Chicago", "IEEE"}

type GeneratedFlashcard struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type QuizQuestion struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// GenerationError carries a message that is safe to show to the client.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string { return e.Message }

func (e *GenerationError) Unwrap() error { return e.Err }

type Generator struct {
	llm      LLM
	prompts  promptCatalog
	maxInput int
}

func NewGenerator(llm LLM, maxInputChars int) (*Generator, error) {
	prompts, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	return &Generator{llm: llm, prompts: prompts, maxInput: maxInputChars}, nil
}

func (g *Generator) checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &GenerationError{Message: "Text content is required", Err: ErrInvalidInput}
	}
	if g.maxInput > 0 && utf8.RuneCountInString(text) > g.maxInput {
		return "", &GenerationError{
			Message: fmt.Sprintf("Text content exceeds the %d character limit", g.maxInput),
			Err:     ErrInvalidInput,
		}
	}
	return text, nil
}

func (g *Generator) Flashcards(ctx context.Context, text string) ([]GeneratedFlashcard, error) {
	text, err := g.checkText(text)
	if err != nil {
		return nil, err
	}

	p := g.prompts.Flashcards
	raw, err := g.llm.Complete(ctx, p.SystemPrompt, p.Render(map[string]string{"Text": text}), p.Options())
	if err != nil {
		return nil, completionError("Failed to generate flashcards", err)
	}

	var parsed []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(CleanJSONResponse(raw)), &parsed); err != nil {
		logrus.WithField("raw", truncate(raw, 500)).WithError(err).Error("Failed to parse generated flashcards")
		return nil, &GenerationError{Message: "Failed to parse generated flashcards", Err: ErrParseResponse}
	}

	cards := make([]GeneratedFlashcard, 0, len(parsed))
	for _, c := range parsed {
		q, a := strings.TrimSpace(c.Question), strings.TrimSpace(c.Answer)
		if q == "" || a == "" {
			continue
		}
		cards = append(cards, GeneratedFlashcard{ID: len(cards) + 1, Question: q, Answer: a})
	}
	if len(cards) == 0 {
		return nil, &GenerationError{Message: "Failed to parse generated flashcards", Err: ErrParseResponse}
	}
	return cards, nil
}

func (g *Generator) Quiz(ctx context.Context, text string) ([]QuizQuestion, error) {
	text, err := g.checkText(text)
	if err != nil {
		return nil, err
	}

	p := g.prompts.Quiz
	raw, err := g.llm.Complete(ctx, p.SystemPrompt, p.Render(map[string]string{"Text": text}), p.Options())
	if err != nil {
		return nil, completionError("Failed to generate quiz questions", err)
	}
	return ParseQuiz(raw)
}

// ParseQuiz validates a model response: every question needs text, exactly
// four options and an integer correctAnswer in 0..3.
func ParseQuiz(raw string) ([]QuizQuestion, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(CleanJSONResponse(raw)), &items); err != nil {
		var anyValue any
		if json.Unmarshal([]byte(CleanJSONResponse(raw)), &anyValue) == nil {
			return nil, &GenerationError{Message: "Generated content is not an array", Err: ErrInvalidQuestion}
		}
		logrus.WithField("raw", truncate(raw, 500)).WithError(err).Error("Failed to parse generated questions")
		return nil, &GenerationError{Message: "Failed to parse generated questions as JSON", Err: ErrParseResponse}
	}

	questions := make([]QuizQuestion, 0, len(items))
	for i, item := range items {
		var q struct {
			Question      string   `json:"question"`
			Options       []string `json:"options"`
			CorrectAnswer *float64 `json:"correctAnswer"`
		}
		if err := json.Unmarshal(item, &q); err != nil ||
			strings.TrimSpace(q.Question) == "" || len(q.Options) != 4 || q.CorrectAnswer == nil {
			return nil, &GenerationError{Message: fmt.Sprintf("Invalid question format at index %d", i), Err: ErrInvalidQuestion}
		}
		answer := *q.CorrectAnswer
		if answer < 0 || answer > 3 || answer != float64(int(answer)) {
			return nil, &GenerationError{Message: fmt.Sprintf("Invalid correct answer index at question %d", i), Err: ErrInvalidQuestion}
		}
		questions = append(questions, QuizQuestion{
			ID:            i + 1,
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: int(answer),
		})
	}
	return questions, nil
}

// NormalizeCitationFormat returns the canonical style name; empty means MLA.
func NormalizeCitationFormat(format string) (string, bool) {
	format = strings.TrimSpace(format)
	if format == "" {
		return "MLA", true
	}
	for _, f := range CitationFormats {
		if strings.EqualFold(f, format) {
			return f, true
		}
	}
	return "", false
}

func (g *Generator) Citations(ctx context.Context, links []string, format string, now time.Time) ([]string, error) {
	cleaned := make([]string, 0, len(links))
	for _, l := range links {
		if l = strings.TrimSpace(l); l != "" {
			cleaned = append(cleaned, l)
		}
	}
	if len(cleaned) == 0 {
		return nil, &GenerationError{Message: "At least one link is required", Err: ErrInvalidInput}
	}
	if len(cleaned) > MaxCitationLinks {
		return nil, &GenerationError{
			Message: fmt.Sprintf("At most %d links can be cited at once", MaxCitationLinks),
			Err:     ErrInvalidInput,
		}
	}
	style, ok := NormalizeCitationFormat(format)
	if !ok {
		return nil, &GenerationError{
			Message: fmt.Sprintf("Unsupported citation format %q", format),
			Err:     ErrInvalidInput,
		}
	}

	var list strings.Builder
	for i, l := range cleaned {
		fmt.Fprintf(&list, "%d. %s\n", i+1, l)
	}

	p := g.prompts.Citation
	prompt := p.Render(map[string]string{
		"Format":     style,
		"Links":      strings.TrimSpace(list.String()),
		"AccessDate": now.Format("January 2, 2006"),
	})
	raw, err := g.llm.Complete(ctx, p.SystemPrompt, prompt, p.Options())
	if err != nil {
		return nil, completionError("Failed to generate citations", err)
	}

	var citations []string
	if err := json.Unmarshal([]byte(CleanJSONResponse(raw)), &citations); err != nil {
		logrus.WithField("raw", truncate(raw, 500)).WithError(err).Error("Failed to parse generated citations")
		return nil, &GenerationError{Message: "Failed to parse generated citations", Err: ErrParseResponse}
	}
	out := citations[:0]
	for _, c := range citations {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// CleanJSONResponse strips markdown code fences and any prose around the
// outermost JSON array or object.
func CleanJSONResponse(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" || s[0] == '[' || s[0] == '{' {
		return s
	}
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	closer := byte(']')
	if s[start] == '{' {
		closer = '}'
	}
	if end := strings.LastIndexByte(s, closer); end > start {
		return s[start : end+1]
	}
	return s
}

func completionError(message string, err error) error {
	if errors.Is(err, ErrNotConfigured) {
		return &GenerationError{Message: "AI provider is not configured", Err: err}
	}
	logrus.WithError(err).Error(message)
	return &GenerationError{Message: message, Err: err}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
