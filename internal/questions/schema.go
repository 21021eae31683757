package questions

import "github.com/abhisek/gatekeep/internal/llm"

// ObjectiveSchema is the structured output for a batch of quiz questions.
var ObjectiveSchema = &llm.Schema{
	Name:        "objective-questions",
	Description: "A batch of auto-graded technical screening questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": map[string]any{
							"type":        "string",
							"description": "The question shown to the candidate, plain text",
						},
						"format": map[string]any{
							"type": "string",
							"enum": []any{"multiple_choice", "short_answer"},
						},
						"choices": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Exactly 4 options for multiple_choice, empty for short_answer",
						},
						"answer": map[string]any{
							"type":        "string",
							"description": "The correct answer. For multiple_choice, the exact text of the correct option.",
						},
						"skill": map[string]any{
							"type":        "string",
							"description": "The candidate skill this question targets, or empty for general questions",
						},
						"difficulty": map[string]any{
							"type":    "integer",
							"minimum": 1,
							"maximum": 5,
						},
						"explanation": map[string]any{
							"type":        "string",
							"description": "One or two sentences explaining the answer",
						},
					},
					"required":             []any{"text", "format", "choices", "answer", "skill", "difficulty", "explanation"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

// CommunicationSchema is the structured output for communication prompts.
var CommunicationSchema = &llm.Schema{
	Name:        "communication-prompts",
	Description: "A writing task and a speaking task for a communication assessment",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"writing_prompt": map[string]any{
				"type":        "string",
				"description": "A realistic workplace writing task, two or three sentences",
			},
			"speaking_prompt": map[string]any{
				"type":        "string",
				"description": "A question the candidate answers aloud in about two minutes",
			},
		},
		"required":             []any{"writing_prompt", "speaking_prompt"},
		"additionalProperties": false,
	},
}

// CodingSchema is the structured output for stdin/stdout coding problems.
var CodingSchema = &llm.Schema{
	Name:        "coding-problems",
	Description: "Small programming problems graded by comparing standard output",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"problems": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":  map[string]any{"type": "string"},
						"prompt": map[string]any{"type": "string"},
						"input": map[string]any{
							"type":        "string",
							"description": "Exact text fed to the program on standard input",
						},
						"expected_output": map[string]any{
							"type":        "string",
							"description": "Exact text a correct program prints for that input",
						},
						"starter_code": map[string]any{
							"type":        "string",
							"description": "A skeleton in the requested language that reads the input but does not solve the problem",
						},
					},
					"required":             []any{"title", "prompt", "input", "expected_output", "starter_code"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"problems"},
		"additionalProperties": false,
	},
}
