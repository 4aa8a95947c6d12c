package services

import (
	"fmt"
	"time"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

// subjectDateLayout renders dates like "Jul 16, 2019"
const subjectDateLayout = "Jan 2, 2006"

// DigestSubject depends only on the school and the run date, so every
// recipient of one school's run gets the same subject.
func DigestSubject(school models.School, asOf time.Time) string {
	return fmt.Sprintf("%s Daily Digest – %s", school.Name, asOf.Format(subjectDateLayout))
}

// ComposeDigest assembles a recipient's payload. Questions whose community is
// not in the community list are dropped.
func ComposeDigest(school models.School, recipient models.Recipient, communities []models.Community, ranked []models.Question, asOf time.Time) *models.DigestPayload {
	payload := &models.DigestPayload{
		SchoolID:    school.ID,
		RecipientID: recipient.UserID,
		Email:       recipient.Email,
		Subject:     DigestSubject(school, asOf),
		AsOf:        asOf,
		Communities: make([]models.Community, len(communities)),
		Questions:   make([]models.Question, 0, len(ranked)),
	}
	copy(payload.Communities, communities)

	visible := make(map[int64]struct{}, len(communities))
	for _, c := range communities {
		visible[c.ID] = struct{}{}
	}
	for _, q := range ranked {
		if _, ok := visible[q.CommunityID]; ok {
			payload.Questions = append(payload.Questions, q)
		}
	}

	return payload
}
