package questions

import (
	"fmt"
	"strings"
)

// Validator checks a generated objective question.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	Name() string
	Validate(q *ObjectiveQuestion) *ValidationError
}

// ValidationError describes why a question failed validation.
type ValidationError struct {
	Validator string
	Message   string
	Retryable bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// StructuralValidator checks required fields, lengths and that multiple
// choice answers are one of the offered choices.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *ObjectiveQuestion) *ValidationError {
	fail := func(msg string) *ValidationError {
		return &ValidationError{Validator: v.Name(), Message: msg, Retryable: true}
	}

	switch {
	case strings.TrimSpace(q.Text) == "":
		return fail("text is empty")
	case len(q.Text) > 500:
		return fail("text exceeds 500 characters")
	case strings.TrimSpace(q.CorrectAnswer) == "":
		return fail("correct answer is empty")
	}

	switch q.Format {
	case FormatShortAnswer:
		if len(q.Choices) > 0 {
			return fail("short_answer questions must not have choices")
		}
	case FormatMultipleChoice:
		if len(q.Choices) < 2 || len(q.Choices) > 6 {
			return fail("multiple_choice questions need 2 to 6 choices")
		}
		seen := make(map[string]bool, len(q.Choices))
		found := false
		for _, c := range q.Choices {
			key := strings.ToLower(strings.TrimSpace(c))
			if seen[key] {
				return fail(fmt.Sprintf("duplicate choice %q", c))
			}
			seen[key] = true
			if key == strings.ToLower(strings.TrimSpace(q.CorrectAnswer)) {
				found = true
			}
		}
		if !found {
			return fail("correct answer is not one of the choices")
		}
	default:
		return fail(`format must be "multiple_choice" or "short_answer"`)
	}
	return nil
}

// DuplicateValidator rejects questions whose text was already produced in
// the same batch. It is stateful and must not be shared across batches.
type DuplicateValidator struct {
	seen map[string]bool
}

func (v *DuplicateValidator) Name() string { return "duplicate" }

func (v *DuplicateValidator) Validate(q *ObjectiveQuestion) *ValidationError {
	if v.seen == nil {
		v.seen = make(map[string]bool)
	}
	key := strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
	if v.seen[key] {
		return &ValidationError{Validator: v.Name(), Message: "question repeats an earlier one", Retryable: true}
	}
	v.seen[key] = true
	return nil
}
