package classifier

import (
	"slices"
	"strings"
	"unicode"
)

// MinWordsRule fails responses shorter than the criterion's MinWords.
type MinWordsRule struct{}

func (r *MinWordsRule) Name() string { return "min-words" }

func (r *MinWordsRule) Check(in *Input) Decision {
	if in.Criterion.MinWords > 0 && len(in.Words) < in.Criterion.MinWords {
		return Unsatisfied
	}
	return Undecided
}

// KeywordRule decides criteria that list keywords: satisfied when any of
// them appears in the response.
type KeywordRule struct{}

func (r *KeywordRule) Name() string { return "keywords" }

func (r *KeywordRule) Check(in *Input) Decision {
	if len(in.Criterion.Keywords) == 0 {
		return Undecided
	}
	text := " " + strings.Join(in.Words, " ") + " "
	for _, k := range in.Criterion.Keywords {
		k = strings.Join(strings.Fields(strings.ToLower(k)), " ")
		if k != "" && strings.Contains(text, " "+k+" ") {
			return Satisfied
		}
	}
	return Unsatisfied
}

// HeuristicRule judges the default rubric criteria from surface features
// of the text. It is used when no LLM judge is configured.
type HeuristicRule struct{}

func (r *HeuristicRule) Name() string { return "heuristic" }

func (r *HeuristicRule) Check(in *Input) Decision {
	h, ok := heuristics[in.Criterion.ID]
	if !ok {
		return Undecided
	}
	if h(in) {
		return Satisfied
	}
	return Unsatisfied
}

var heuristics = map[string]func(*Input) bool{
	"grammar":         wellFormed,
	"tone":            func(in *Input) bool { return countPhrases(in, rudePhrases) == 0 },
	"clarity":         readableSentences,
	"professionalism": func(in *Input) bool { return countPhrases(in, slang) == 0 },
	"fluency":         func(in *Input) bool { return ratio(countPhrases(in, fillers), len(in.Words)) < 0.05 },
	"pronunciation":   func(in *Input) bool { return strings.Count(strings.ToLower(in.Text), "[inaudible]") < 2 },
	"confidence":      func(in *Input) bool { return ratio(countPhrases(in, hedges), len(in.Words)) <= 0.03 },
	"relevance":       varied,
}

var (
	rudePhrases = []string{"stupid", "idiot", "shut up", "whatever", "dumb", "hate you"}
	slang       = []string{"gonna", "wanna", "gotta", "lol", "omg", "btw", "u", "ur", "dude", "ya"}
	fillers     = []string{"um", "uh", "erm", "hmm", "you know", "like i said"}
	hedges      = []string{"i think", "maybe", "i guess", "probably", "not sure", "kind of", "sort of"}
)

// wellFormed requires most sentences to start with a capital letter and
// the text to end with terminal punctuation.
func wellFormed(in *Input) bool {
	if len(in.Sentences) == 0 {
		return false
	}
	capitalised := 0
	for _, s := range in.Sentences {
		if r := []rune(s)[0]; unicode.IsUpper(r) || unicode.IsDigit(r) {
			capitalised++
		}
	}
	last := strings.TrimSpace(in.Text)
	ends := strings.ContainsAny(last[len(last)-1:], ".!?")
	return ends && ratio(capitalised, len(in.Sentences)) >= 0.8
}

func readableSentences(in *Input) bool {
	if len(in.Sentences) == 0 {
		return false
	}
	avg := ratio(len(in.Words), len(in.Sentences))
	return avg >= 5 && avg <= 30
}

// varied rejects responses that repeat a handful of words.
func varied(in *Input) bool {
	seen := make(map[string]bool, len(in.Words))
	for _, w := range in.Words {
		seen[w] = true
	}
	return len(in.Words) > 0 && ratio(len(seen), len(in.Words)) >= 0.3
}

// countPhrases counts whole-word occurrences of each phrase.
func countPhrases(in *Input, phrases []string) int {
	n := 0
	for _, p := range phrases {
		parts := strings.Fields(p)
		for i := 0; i+len(parts) <= len(in.Words); i++ {
			if slices.Equal(in.Words[i:i+len(parts)], parts) {
				n++
			}
		}
	}
	return n
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
