package questions

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBankLoads(t *testing.T) {
	b, err := DefaultBank(DefaultBankConfig())
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", b.Version())

	qs, err := b.GenerateObjective(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, qs, 30)

	ids := make(map[string]bool)
	for _, q := range qs {
		assert.False(t, ids[q.ID], "duplicate id %s", q.ID)
		ids[q.ID] = true
		assert.Nil(t, (&StructuralValidator{}).Validate(&q), q.ID)
	}
}

func TestBankRanksBySkillOverlap(t *testing.T) {
	b, err := DefaultBank(BankConfig{ObjectiveCount: 5})
	require.NoError(t, err)

	qs, err := b.GenerateObjective(context.Background(), []string{"python"})
	require.NoError(t, err)
	require.Len(t, qs, 5)

	// The three Python-tagged questions come first, in file order.
	assert.Equal(t, "gen-008", qs[0].ID)
	assert.Equal(t, "gen-009", qs[1].ID)
	assert.Equal(t, "gen-010", qs[2].ID)
	assert.Equal(t, "gen-001", qs[3].ID)
}

func TestBankObjectiveIsACopy(t *testing.T) {
	b, err := DefaultBank(BankConfig{ObjectiveCount: 1})
	require.NoError(t, err)

	first, _ := b.GenerateObjective(context.Background(), nil)
	first[0].Choices[0] = "mutated"

	again, _ := b.GenerateObjective(context.Background(), nil)
	assert.NotEqual(t, "mutated", again[0].Choices[0])
}

func TestBankCommunication(t *testing.T) {
	b, err := DefaultBank(DefaultBankConfig())
	require.NoError(t, err)

	ct, err := b.GenerateCommunication(context.Background(), []string{"React", "CSS"})
	require.NoError(t, err)
	assert.Contains(t, ct.WritingPrompt, "checkout page")
	assert.NotEmpty(t, ct.SpeakingPrompt)
	assert.Len(t, ct.Rubric.Written, 4)
	assert.Len(t, ct.Rubric.Spoken, 4)

	general, err := b.GenerateCommunication(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ct.WritingPrompt, general.WritingPrompt, "untied ranking keeps file order")
}

func TestBankCoding(t *testing.T) {
	b, err := DefaultBank(DefaultBankConfig())
	require.NoError(t, err)

	ps, err := b.GenerateCoding(context.Background(), "py", nil)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "sum-integers", ps[0].ID)
	assert.Equal(t, LangPython, ps[0].Language)
	assert.Contains(t, ps[0].StarterCode, "sys.stdin")
	assert.Empty(t, ps[1].StarterCode)

	ps, err = b.GenerateCoding(context.Background(), "c++", []string{"C++"})
	require.NoError(t, err)
	assert.Equal(t, "fizzbuzz", ps[0].ID)
	assert.Equal(t, LangCPP, ps[0].Language)

	_, err = b.GenerateCoding(context.Background(), "cobol", nil)
	assert.Error(t, err)
}

func TestLoadBankRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing version",
			yaml: "objective: []\n",
			want: "not a semantic version",
		},
		{
			name: "major version",
			yaml: "version: v2.0.0\n",
			want: "not supported",
		},
		{
			name: "unknown field",
			yaml: "version: v1.0.0\nextra: true\n",
			want: "decode question bank",
		},
		{
			name: "duplicate id",
			yaml: `version: v1.0.0
objective:
  - {id: a, text: "1+1?", format: short_answer, answer: "2"}
  - {id: a, text: "2+2?", format: short_answer, answer: "4"}
`,
			want: "duplicate objective question id",
		},
		{
			name: "answer not a choice",
			yaml: `version: v1.0.0
objective:
  - {id: a, text: "Pick", format: multiple_choice, choices: [x, y], answer: z}
`,
			want: "not one of the choices",
		},
		{
			name: "coding without prompt",
			yaml: "version: v1.1.0\ncoding:\n  - {id: p}\n",
			want: "needs an id and a prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBank(strings.NewReader(tt.yaml), DefaultBankConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEmptyBankSections(t *testing.T) {
	b, err := LoadBank(strings.NewReader("version: v1.2.3\n"), BankConfig{})
	require.NoError(t, err)

	_, err = b.GenerateObjective(context.Background(), nil)
	assert.Error(t, err)
	_, err = b.GenerateCommunication(context.Background(), nil)
	assert.Error(t, err)
	_, err = b.GenerateCoding(context.Background(), "go", nil)
	assert.Error(t, err)
}
