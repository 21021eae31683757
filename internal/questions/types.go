package questions

import "context"

// Format describes how the candidate answers an objective question.
type Format string

const (
	// FormatMultipleChoice means the candidate picks one of the listed choices.
	FormatMultipleChoice Format = "multiple_choice"

	// FormatShortAnswer means the candidate types a short free-form answer.
	FormatShortAnswer Format = "short_answer"
)

// ObjectiveQuestion is a single auto-graded quiz question.
type ObjectiveQuestion struct {
	ID     string `json:"id" yaml:"id"`
	Text   string `json:"text" yaml:"text"`
	Format Format `json:"format" yaml:"format"`

	// Choices is populated only for FormatMultipleChoice.
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`

	// CorrectAnswer is the canonical answer. For multiple choice it is the
	// text of the correct option.
	CorrectAnswer string `json:"correct_answer" yaml:"answer"`

	Skills      []string `json:"skills,omitempty" yaml:"skills,omitempty"`
	Difficulty  int      `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Redacted returns a copy safe to show to the candidate.
func (q ObjectiveQuestion) Redacted() ObjectiveQuestion {
	q.CorrectAnswer = ""
	q.Explanation = ""
	return q
}

// Criterion is one rubric line a communication response is judged against.
type Criterion struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// Keywords and MinWords feed the rule-based classifier. Both are optional.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	MinWords int      `json:"min_words,omitempty" yaml:"min_words,omitempty"`
}

// Rubric holds the criteria for the written and the spoken response.
type Rubric struct {
	Written []Criterion `json:"written" yaml:"written"`
	Spoken  []Criterion `json:"spoken" yaml:"spoken"`
}

// CommunicationTest is the material for the communication stage.
type CommunicationTest struct {
	WritingPrompt  string `json:"writing_prompt" yaml:"writing_prompt"`
	SpeakingPrompt string `json:"speaking_prompt" yaml:"speaking_prompt"`
	Rubric         Rubric `json:"rubric" yaml:"rubric"`
}

// CodingProblem is a single program the candidate must write. The program
// reads Input on stdin and must print ExpectedOutput.
type CodingProblem struct {
	ID             string   `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Prompt         string   `json:"prompt" yaml:"prompt"`
	Language       string   `json:"language" yaml:"-"`
	Input          string   `json:"input" yaml:"input"`
	ExpectedOutput string   `json:"expected_output,omitempty" yaml:"expected_output"`
	StarterCode    string   `json:"starter_code,omitempty" yaml:"-"`
	Skills         []string `json:"skills,omitempty" yaml:"skills,omitempty"`
}

// Redacted hides the expected output from the candidate.
func (p CodingProblem) Redacted() CodingProblem {
	p.ExpectedOutput = ""
	return p
}

// Generator produces per-candidate assessment material.
type Generator interface {
	GenerateObjective(ctx context.Context, skills []string) ([]ObjectiveQuestion, error)
	GenerateCommunication(ctx context.Context, skills []string) (*CommunicationTest, error)
	GenerateCoding(ctx context.Context, language string, skills []string) ([]CodingProblem, error)
}
