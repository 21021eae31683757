package questions

import (
	"bytes"
	"strings"
	"text/template"
)

const objectiveSystemPrompt = `You write technical screening questions for a software bootcamp admissions test.

Rules:
- Questions must have one unambiguous correct answer.
- Prefer "multiple_choice" with exactly 4 options. Distractors should be plausible mistakes.
- Use "short_answer" only when the answer is a single number or word.
- Spread questions across the candidate's skills, and add general programming questions when skills are few.
- Plain text only. No markdown.
- Do not repeat a question.`

const communicationSystemPrompt = `You write communication tasks for a software bootcamp admissions test.
The writing task asks for a short workplace email or summary. The speaking task is answered aloud.
Both should relate to the candidate's background when possible. Plain text only.`

const codingSystemPrompt = `You write small programming problems for a software bootcamp admissions test.

Rules:
- Each program reads from standard input and writes to standard output.
- The expected output must be exactly what a correct program prints, without trailing spaces.
- Problems should take 10 to 20 minutes for a junior developer.
- Starter code must compile in the requested language and must not contain the solution.`

var promptFuncs = template.FuncMap{"join": strings.Join}

var objectiveUserTemplate = template.Must(template.New("objective").Funcs(promptFuncs).Parse(`Write {{.Count}} questions.
Candidate skills: {{if .Skills}}{{join .Skills ", "}}{{else}}none listed{{end}}`))

var communicationUserTemplate = template.Must(template.New("communication").Funcs(promptFuncs).Parse(
	`Candidate skills: {{if .Skills}}{{join .Skills ", "}}{{else}}none listed{{end}}`))

var codingUserTemplate = template.Must(template.New("coding").Funcs(promptFuncs).Parse(`Write {{.Count}} problems.
Language: {{.Language}}
Candidate skills: {{if .Skills}}{{join .Skills ", "}}{{else}}none listed{{end}}`))

type promptInput struct {
	Count    int
	Language string
	Skills   []string
}

func render(t *template.Template, in promptInput) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}
