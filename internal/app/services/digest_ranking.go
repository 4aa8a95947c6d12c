package services

import (
	"sort"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

// DefaultCap is the maximum number of questions in one digest
const DefaultCap = 5

// RankQuestions orders candidates newest first, ties by ascending ID, and
// keeps the first limit entries. The input slice is not modified.
func RankQuestions(candidates []models.Question, limit int) []models.Question {
	if limit <= 0 {
		limit = DefaultCap
	}

	ranked := make([]models.Question, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
