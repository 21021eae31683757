package questions

// DefaultRubric returns the standard communication rubric: four criteria
// for the written response and four for the spoken response.
func DefaultRubric() Rubric {
	return Rubric{
		Written: []Criterion{
			{ID: "grammar", Name: "Grammar", Description: "Complete sentences with correct grammar, spelling and punctuation.", MinWords: 40},
			{ID: "tone", Name: "Tone", Description: "Courteous and appropriate for the audience named in the prompt.", MinWords: 40},
			{ID: "clarity", Name: "Clarity", Description: "The main point is stated early and supported in a logical order.", MinWords: 40},
			{ID: "professionalism", Name: "Professionalism", Description: "No slang, no filler, and a clear call to action or closing.", MinWords: 40},
		},
		Spoken: []Criterion{
			{ID: "fluency", Name: "Fluency", Description: "Speech flows without long hesitations or restarts.", MinWords: 30},
			{ID: "pronunciation", Name: "Pronunciation", Description: "Words in the transcript are recognisable and correctly formed.", MinWords: 30},
			{ID: "confidence", Name: "Confidence", Description: "Statements are direct and not hedged throughout.", MinWords: 30},
			{ID: "relevance", Name: "Relevance", Description: "The answer addresses the speaking prompt that was asked.", MinWords: 30},
		},
	}
}
