package classifier

import (
	"regexp"
	"strings"

	"github.com/abhisek/gatekeep/internal/questions"
)

// Decision is the outcome of one rule for one criterion.
type Decision int

const (
	Undecided Decision = iota
	Satisfied
	Unsatisfied
)

func (d Decision) String() string {
	switch d {
	case Satisfied:
		return "satisfied"
	case Unsatisfied:
		return "unsatisfied"
	}
	return "undecided"
}

// Input is a response prepared for rule evaluation.
type Input struct {
	Text      string
	Words     []string
	Sentences []string
	Criterion questions.Criterion
}

var (
	wordRe     = regexp.MustCompile(`[A-Za-z][A-Za-z']*`)
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// NewInput tokenises text for criterion. Words are lower-cased.
func NewInput(text string, c questions.Criterion) *Input {
	in := &Input{Text: text, Criterion: c}
	for _, w := range wordRe.FindAllString(text, -1) {
		in.Words = append(in.Words, strings.ToLower(w))
	}
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); wordRe.MatchString(s) {
			in.Sentences = append(in.Sentences, s)
		}
	}
	return in
}

// Rule is a rule-based criterion check.
type Rule interface {
	Name() string
	Check(in *Input) Decision
}

// DefaultRules returns the mechanical rules in priority order. A response
// too short for the criterion fails before any keyword is considered.
func DefaultRules() []Rule {
	return []Rule{
		&MinWordsRule{},
		&KeywordRule{},
	}
}

// RunRules executes rules in order and returns the first decision, with
// the name of the rule that made it.
func RunRules(rules []Rule, in *Input) (Decision, string) {
	for _, r := range rules {
		if d := r.Check(in); d != Undecided {
			return d, r.Name()
		}
	}
	return Undecided, ""
}
