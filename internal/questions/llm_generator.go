package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/abhisek/gatekeep/internal/llm"
)

// Config controls the behavior of the LLMGenerator.
type Config struct {
	// Validators run on every generated objective question, in order. A
	// question failing any of them is dropped from the batch.
	Validators []Validator

	ObjectiveCount int
	CodingCount    int

	// MinObjective is the smallest acceptable batch after validation.
	MinObjective int

	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the standard generator settings.
func DefaultConfig() Config {
	return Config{
		Validators:     []Validator{&StructuralValidator{}},
		ObjectiveCount: 30,
		CodingCount:    2,
		MinObjective:   20,
		MaxTokens:      8192,
		Temperature:    0.7,
	}
}

// LLMGenerator implements Generator using an LLM provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
}

// NewLLMGenerator creates a generator backed by provider.
func NewLLMGenerator(provider llm.Provider, cfg Config) *LLMGenerator {
	return &LLMGenerator{provider: provider, config: cfg}
}

type objectiveOutput struct {
	Questions []struct {
		Text        string   `json:"text"`
		Format      string   `json:"format"`
		Choices     []string `json:"choices"`
		Answer      string   `json:"answer"`
		Skill       string   `json:"skill"`
		Difficulty  int      `json:"difficulty"`
		Explanation string   `json:"explanation"`
	} `json:"questions"`
}

type communicationOutput struct {
	WritingPrompt  string `json:"writing_prompt"`
	SpeakingPrompt string `json:"speaking_prompt"`
}

type codingOutput struct {
	Problems []struct {
		Title          string `json:"title"`
		Prompt         string `json:"prompt"`
		Input          string `json:"input"`
		ExpectedOutput string `json:"expected_output"`
		StarterCode    string `json:"starter_code"`
	} `json:"problems"`
}

func (g *LLMGenerator) GenerateObjective(ctx context.Context, skills []string) ([]ObjectiveQuestion, error) {
	ctx = llm.WithPurpose(ctx, "objective-gen")

	var raw objectiveOutput
	if err := g.generate(ctx, objectiveSystemPrompt, objectiveUserTemplate, ObjectiveSchema,
		promptInput{Count: g.config.ObjectiveCount, Skills: skills}, &raw); err != nil {
		return nil, err
	}

	// Duplicate tracking is per batch.
	validators := append(append([]Validator{}, g.config.Validators...), &DuplicateValidator{})

	out := make([]ObjectiveQuestion, 0, len(raw.Questions))
	for _, r := range raw.Questions {
		q := ObjectiveQuestion{
			ID:            fmt.Sprintf("q-%02d", len(out)+1),
			Text:          strings.TrimSpace(r.Text),
			Format:        Format(r.Format),
			Choices:       r.Choices,
			CorrectAnswer: strings.TrimSpace(r.Answer),
			Difficulty:    r.Difficulty,
			Explanation:   r.Explanation,
		}
		if q.Format == FormatShortAnswer {
			q.Choices = nil
		}
		if r.Skill != "" {
			q.Skills = []string{r.Skill}
		}
		if runValidators(validators, &q) != nil {
			continue
		}
		out = append(out, q)
		if len(out) == g.config.ObjectiveCount {
			break
		}
	}

	if len(out) < g.config.MinObjective {
		return nil, fmt.Errorf("only %d of %d generated questions passed validation", len(out), len(raw.Questions))
	}
	return out, nil
}

func (g *LLMGenerator) GenerateCommunication(ctx context.Context, skills []string) (*CommunicationTest, error) {
	ctx = llm.WithPurpose(ctx, "communication-gen")

	var raw communicationOutput
	if err := g.generate(ctx, communicationSystemPrompt, communicationUserTemplate, CommunicationSchema,
		promptInput{Skills: skills}, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.WritingPrompt) == "" || strings.TrimSpace(raw.SpeakingPrompt) == "" {
		return nil, fmt.Errorf("generated communication prompts are empty")
	}

	return &CommunicationTest{
		WritingPrompt:  strings.TrimSpace(raw.WritingPrompt),
		SpeakingPrompt: strings.TrimSpace(raw.SpeakingPrompt),
		Rubric:         DefaultRubric(),
	}, nil
}

func (g *LLMGenerator) GenerateCoding(ctx context.Context, language string, skills []string) ([]CodingProblem, error) {
	lang, ok := NormalizeLanguage(language)
	if !ok {
		return nil, fmt.Errorf("unsupported coding language %q", language)
	}
	ctx = llm.WithPurpose(ctx, "coding-gen")

	var raw codingOutput
	if err := g.generate(ctx, codingSystemPrompt, codingUserTemplate, CodingSchema,
		promptInput{Count: g.config.CodingCount, Language: lang, Skills: skills}, &raw); err != nil {
		return nil, err
	}

	out := make([]CodingProblem, 0, len(raw.Problems))
	for _, r := range raw.Problems {
		if strings.TrimSpace(r.Prompt) == "" || strings.TrimSpace(r.ExpectedOutput) == "" {
			continue
		}
		out = append(out, CodingProblem{
			ID:             fmt.Sprintf("p-%02d", len(out)+1),
			Title:          r.Title,
			Prompt:         r.Prompt,
			Language:       lang,
			Input:          r.Input,
			ExpectedOutput: r.ExpectedOutput,
			StarterCode:    r.StarterCode,
		})
		if len(out) == g.config.CodingCount {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable coding problems were generated")
	}
	return out, nil
}

func (g *LLMGenerator) generate(ctx context.Context, system string, tmpl *template.Template, schema *llm.Schema, in promptInput, out any) error {
	userMsg, err := render(tmpl, in)
	if err != nil {
		return fmt.Errorf("build prompt: %w", err)
	}

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		Schema:      schema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	})
	if err != nil {
		return fmt.Errorf("LLM generation failed: %w", err)
	}

	if err := json.Unmarshal(resp.Content, out); err != nil {
		return fmt.Errorf("failed to parse LLM response: %w", err)
	}
	return nil
}

func runValidators(validators []Validator, q *ObjectiveQuestion) *ValidationError {
	for _, v := range validators {
		if verr := v.Validate(q); verr != nil {
			return verr
		}
	}
	return nil
}
