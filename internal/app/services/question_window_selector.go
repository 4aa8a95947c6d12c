package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

// DefaultWindow is how far back a question still counts as recent
const DefaultWindow = 7 * 24 * time.Hour

// QuestionWindowSelector picks recent, unarchived questions nobody has
// commented on yet. It never writes.
type QuestionWindowSelector struct {
	store DirectoryStore
}

// NewQuestionWindowSelector creates a selector over the directory
func NewQuestionWindowSelector(store DirectoryStore) *QuestionWindowSelector {
	return &QuestionWindowSelector{store: store}
}

// CandidateQuestions returns the union over communities of questions with
// asOf-window <= createdAt <= asOf, archived == false and zero comments as of
// asOf. The lower bound is inclusive.
func (s *QuestionWindowSelector) CandidateQuestions(ctx context.Context, communities []models.Community, asOf time.Time, window time.Duration) ([]models.Question, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	since := asOf.Add(-window)

	candidates := []models.Question{}
	for _, community := range communities {
		questions, err := s.store.GetQuestions(ctx, community, since, asOf)
		if err != nil {
			return nil, fmt.Errorf("loading questions for community %d: %w", community.ID, err)
		}

		for _, q := range questions {
			if isCandidate(q, community.ID, since, asOf) {
				candidates = append(candidates, q)
			}
		}
	}

	return candidates, nil
}

func isCandidate(q models.Question, communityID int64, since, asOf time.Time) bool {
	switch {
	case q.CommunityID != communityID:
		return false
	case q.Archived:
		return false
	case q.HasActivity():
		return false
	case q.CreatedAt.Before(since), q.CreatedAt.After(asOf):
		return false
	}
	return true
}
