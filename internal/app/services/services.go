package services

import (
	"context"
	"time"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

// Services defined in this package:
// - DailyDigestService: runs the daily unanswered-questions digest per school
// - CommunityAccessResolver: which communities a recipient can see
// - QuestionWindowSelector: recent questions without activity

// DirectoryStore is the read-only platform data the digest engine consumes.
// Implementations must not cache comment counts.
type DirectoryStore interface {
	GetSchool(ctx context.Context, schoolID int64) (*models.School, error)
	ListSchools(ctx context.Context) ([]models.School, error)
	GetRecipients(ctx context.Context, schoolID int64) ([]models.Recipient, error)
	GetRecipient(ctx context.Context, schoolID, userID int64) (*models.Recipient, error)
	GetTeamCourse(ctx context.Context, recipient models.Recipient) (*models.Course, error)
	GetCommunitiesForCourse(ctx context.Context, course models.Course) ([]models.Community, error)
	GetQuestions(ctx context.Context, community models.Community, since, asOf time.Time) ([]models.Question, error)
}

// DigestMailer renders and sends one digest. Errors wrap
// apperrors.ErrTransientDelivery, apperrors.ErrPermanentDelivery or
// apperrors.ErrAlreadyDelivered; anything else is treated as transient.
type DigestMailer interface {
	SendDigest(ctx context.Context, school *models.School, payload *models.DigestPayload) error
}
