// Package score grades answer maps against quiz definitions.
package score

import "devopsfarm-quiz/internal/domain"

// Score computes per-category and total scores for the given answers.
// A question whose recorded answer equals its correct answer contributes its
// value; unanswered or incorrect questions contribute 0. Every category of the
// definition appears in the result, so repeated calls over the same inputs
// yield identical maps. The inputs are never mutated.
func Score(def domain.QuizDefinition, answers domain.AnswerMap) domain.ScoreResult {
	result := domain.ScoreResult{
		CategoryScores: make(map[string]int, len(def.Categories)),
	}
	for _, cat := range def.Categories {
		total := 0
		for _, q := range cat.Questions {
			if selected, ok := answers[q.ID]; ok && selected == q.CorrectAnswer {
				total += q.Value
			}
		}
		result.CategoryScores[cat.Category] += total
		result.TotalScore += total
	}
	return result
}
