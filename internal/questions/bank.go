package questions

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

//go:embed bank/default.yaml
var defaultBankYAML []byte

// BankConfig controls how many items the Bank hands out per stage.
type BankConfig struct {
	ObjectiveCount int `yaml:"objective_count"`
	CodingCount    int `yaml:"coding_count"`
}

// DefaultBankConfig matches the 30-question objective round.
func DefaultBankConfig() BankConfig {
	return BankConfig{ObjectiveCount: 30, CodingCount: 2}
}

// Bank is a static, file-backed Generator. Items are ranked by how many of
// their skill tags overlap the candidate's skills; untagged items are
// general and fill the remaining slots in file order.
type Bank struct {
	cfg           BankConfig
	version       string
	objective     []ObjectiveQuestion
	communication []bankPrompt
	coding        []bankProblem
}

type bankFile struct {
	Version       string              `yaml:"version"`
	Objective     []ObjectiveQuestion `yaml:"objective"`
	Communication []bankPrompt        `yaml:"communication"`
	Coding        []bankProblem       `yaml:"coding"`
}

type bankPrompt struct {
	Skills         []string `yaml:"skills"`
	WritingPrompt  string   `yaml:"writing_prompt"`
	SpeakingPrompt string   `yaml:"speaking_prompt"`
	Rubric         *Rubric  `yaml:"rubric"`
}

type bankProblem struct {
	CodingProblem `yaml:",inline"`
	Starter       map[string]string `yaml:"starter"`
}

// DefaultBank returns the bank compiled into the binary.
func DefaultBank(cfg BankConfig) (*Bank, error) {
	return LoadBank(bytes.NewReader(defaultBankYAML), cfg)
}

// LoadBankFile reads a bank from a YAML file on disk.
func LoadBankFile(path string, cfg BankConfig) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()
	return LoadBank(f, cfg)
}

// LoadBank decodes and checks a bank. The file's version must be a v1
// semantic version.
func LoadBank(r io.Reader, cfg BankConfig) (*Bank, error) {
	var f bankFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}

	if !semver.IsValid(f.Version) {
		return nil, fmt.Errorf("question bank version %q is not a semantic version", f.Version)
	}
	if semver.Major(f.Version) != "v1" {
		return nil, fmt.Errorf("question bank version %s is not supported (want v1.x)", f.Version)
	}

	seen := make(map[string]bool, len(f.Objective))
	for i, q := range f.Objective {
		if q.ID == "" {
			return nil, fmt.Errorf("objective question %d has no id", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate objective question id %q", q.ID)
		}
		seen[q.ID] = true
		if verr := (&StructuralValidator{}).Validate(&f.Objective[i]); verr != nil {
			return nil, fmt.Errorf("objective question %q: %w", q.ID, verr)
		}
	}
	for i, p := range f.Coding {
		if p.ID == "" || p.Prompt == "" {
			return nil, fmt.Errorf("coding problem %d needs an id and a prompt", i)
		}
	}

	if cfg.ObjectiveCount <= 0 {
		cfg.ObjectiveCount = DefaultBankConfig().ObjectiveCount
	}
	if cfg.CodingCount <= 0 {
		cfg.CodingCount = DefaultBankConfig().CodingCount
	}

	return &Bank{
		cfg:           cfg,
		version:       f.Version,
		objective:     f.Objective,
		communication: f.Communication,
		coding:        f.Coding,
	}, nil
}

// Version returns the bank file version.
func (b *Bank) Version() string { return b.version }

func (b *Bank) GenerateObjective(_ context.Context, skills []string) ([]ObjectiveQuestion, error) {
	if len(b.objective) == 0 {
		return nil, fmt.Errorf("question bank has no objective questions")
	}

	idx := rank(len(b.objective), func(i int) []string { return b.objective[i].Skills }, skills)
	n := min(b.cfg.ObjectiveCount, len(idx))

	out := make([]ObjectiveQuestion, 0, n)
	for _, i := range idx[:n] {
		q := b.objective[i]
		q.Choices = slices.Clone(q.Choices)
		q.Skills = slices.Clone(q.Skills)
		out = append(out, q)
	}
	return out, nil
}

func (b *Bank) GenerateCommunication(_ context.Context, skills []string) (*CommunicationTest, error) {
	if len(b.communication) == 0 {
		return nil, fmt.Errorf("question bank has no communication prompts")
	}

	idx := rank(len(b.communication), func(i int) []string { return b.communication[i].Skills }, skills)
	p := b.communication[idx[0]]

	rubric := DefaultRubric()
	if p.Rubric != nil {
		rubric = *p.Rubric
	}
	return &CommunicationTest{
		WritingPrompt:  strings.TrimSpace(p.WritingPrompt),
		SpeakingPrompt: strings.TrimSpace(p.SpeakingPrompt),
		Rubric:         rubric,
	}, nil
}

func (b *Bank) GenerateCoding(_ context.Context, language string, skills []string) ([]CodingProblem, error) {
	lang, ok := NormalizeLanguage(language)
	if !ok {
		return nil, fmt.Errorf("unsupported coding language %q", language)
	}
	if len(b.coding) == 0 {
		return nil, fmt.Errorf("question bank has no coding problems")
	}

	idx := rank(len(b.coding), func(i int) []string { return b.coding[i].Skills }, skills)
	n := min(b.cfg.CodingCount, len(idx))

	out := make([]CodingProblem, 0, n)
	for _, i := range idx[:n] {
		p := b.coding[i].CodingProblem
		p.Language = lang
		p.StarterCode = b.coding[i].Starter[lang]
		p.Skills = slices.Clone(p.Skills)
		out = append(out, p)
	}
	return out, nil
}

// rank orders item indexes by skill overlap (highest first), keeping file
// order among equals.
func rank(n int, tags func(int) []string, skills []string) []int {
	want := make(map[string]bool, len(skills))
	for _, s := range skills {
		want[strings.ToLower(strings.TrimSpace(s))] = true
	}

	scores := make([]int, n)
	idx := make([]int, n)
	for i := range n {
		idx[i] = i
		for _, t := range tags(i) {
			if want[strings.ToLower(t)] {
				scores[i]++
			}
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	return idx
}
