package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/gatekeep/internal/llm"
)

const extractSystemPrompt = `You extract structured facts from a candidate's resume.
Copy facts as written; do not invent or embellish. Skills are technologies,
languages, frameworks, tools and methodologies, one per entry.
Experience entries are one line per role or achievement. Leave a field empty
when the resume does not mention it.`

// maxResumeChars bounds the resume text sent to the model.
const maxResumeChars = 20000

var extractSchema = &llm.Schema{
	Name:        "resume-facts",
	Description: "Structured facts extracted from a resume",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"skills":         stringArray(),
			"experience":     stringArray(),
			"education":      stringArray(),
			"projects":       stringArray(),
			"certifications": stringArray(),
			"achievements":   stringArray(),
			"contact": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":     map[string]any{"type": "string"},
					"email":    map[string]any{"type": "string"},
					"phone":    map[string]any{"type": "string"},
					"location": map[string]any{"type": "string"},
				},
				"required":             []any{"name", "email", "phone", "location"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"skills", "experience", "education", "projects", "certifications", "achievements", "contact"},
		"additionalProperties": false,
	},
}

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// LLMExtractor reads plain text resumes with an LLM. Skills the keyword
// dictionary recognises are merged into the model's list.
type LLMExtractor struct {
	provider llm.Provider
	text     *TextExtractor
}

// NewLLMExtractor creates an extractor backed by provider.
func NewLLMExtractor(provider llm.Provider) *LLMExtractor {
	return &LLMExtractor{provider: provider, text: NewTextExtractor(nil)}
}

func (e *LLMExtractor) Parse(ctx context.Context, f File) (*Parsed, error) {
	base, err := e.text.Parse(ctx, f)
	if err != nil {
		return nil, err
	}

	text := base.Text
	if len(text) > maxResumeChars {
		text = text[:maxResumeChars]
	}

	resp, err := e.provider.Generate(llm.WithPurpose(ctx, "resume-parse"), llm.Request{
		System:      extractSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
		Schema:      extractSchema,
		MaxTokens:   2048,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("resume extraction failed: %w", err)
	}

	var out Parsed
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("failed to parse resume extraction: %w", err)
	}
	out.Text = base.Text
	out.Skills = mergeSkills(out.Skills, base.Skills)
	if out.Contact.Email == "" {
		out.Contact.Email = base.Contact.Email
	}
	return &out, nil
}

// mergeSkills appends extra to skills, skipping case-insensitive duplicates
// and blanks.
func mergeSkills(skills, extra []string) []string {
	seen := make(map[string]bool, len(skills)+len(extra))
	var out []string
	for _, s := range append(append([]string{}, skills...), extra...) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// MergeSkills combines skill lists, keeping the first spelling of each.
func MergeSkills(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = mergeSkills(out, l)
	}
	return out
}
