package questions

import (
	"strconv"
	"strings"
)

// CheckAnswer compares a candidate's answer against the question key.
//
// Whitespace is trimmed. Short answers must match exactly. Multiple choice
// answers match the choice text (case-insensitive) or its 1-based index.
func CheckAnswer(answer string, q ObjectiveQuestion) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}

	if q.Format == FormatMultipleChoice {
		return checkMultipleChoice(answer, q)
	}
	return answer == strings.TrimSpace(q.CorrectAnswer)
}

func checkMultipleChoice(answer string, q ObjectiveQuestion) bool {
	correct := strings.TrimSpace(q.CorrectAnswer)

	if idx, err := strconv.Atoi(answer); err == nil && idx >= 1 && idx <= len(q.Choices) {
		return strings.EqualFold(strings.TrimSpace(q.Choices[idx-1]), correct)
	}
	return strings.EqualFold(answer, correct)
}
