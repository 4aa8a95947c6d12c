package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
)

// DirectoryStore is the read-only view of the platform used by the digest
// engine. It translates repository misses into application errors.
type DirectoryStore struct {
	schools     *SchoolRepository
	users       *UserRepository
	courses     *CourseRepository
	communities *CommunityRepository
	questions   *QuestionRepository
}

// NewDirectoryStore builds a DirectoryStore over the repositories
func NewDirectoryStore(repos *Repositories) *DirectoryStore {
	return &DirectoryStore{
		schools:     repos.SchoolRepository,
		users:       repos.UserRepository,
		courses:     repos.CourseRepository,
		communities: repos.CommunityRepository,
		questions:   repos.QuestionRepository,
	}
}

// GetSchool returns the school or apperrors.ErrSchoolNotFound
func (d *DirectoryStore) GetSchool(ctx context.Context, schoolID int64) (*models.School, error) {
	school, err := d.schools.GetByID(ctx, schoolID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", apperrors.ErrSchoolNotFound, schoolID)
	}
	return school, err
}

// ListSchools returns all schools
func (d *DirectoryStore) ListSchools(ctx context.Context) ([]models.School, error) {
	return d.schools.GetAll(ctx)
}

// GetRecipients returns every user of the school; eligibility is decided by the engine
func (d *DirectoryStore) GetRecipients(ctx context.Context, schoolID int64) ([]models.Recipient, error) {
	return d.users.GetRecipientsBySchool(ctx, schoolID)
}

// GetRecipient returns one user of the school or apperrors.ErrRecipientNotFound
func (d *DirectoryStore) GetRecipient(ctx context.Context, schoolID, userID int64) (*models.Recipient, error) {
	rec, err := d.users.GetRecipient(ctx, schoolID, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", apperrors.ErrRecipientNotFound, userID)
	}
	return rec, err
}

// GetTeamCourse returns the course of the recipient's current team, or nil
func (d *DirectoryStore) GetTeamCourse(ctx context.Context, recipient models.Recipient) (*models.Course, error) {
	if recipient.TeamID == nil {
		return nil, nil
	}
	return d.courses.GetByTeamID(ctx, *recipient.TeamID)
}

// GetCommunitiesForCourse returns the communities linked to the course
func (d *DirectoryStore) GetCommunitiesForCourse(ctx context.Context, course models.Course) ([]models.Community, error) {
	return d.communities.GetByCourseID(ctx, course.ID)
}

// GetQuestions returns the community's questions created in [since, asOf]
func (d *DirectoryStore) GetQuestions(ctx context.Context, community models.Community, since, asOf time.Time) ([]models.Question, error) {
	return d.questions.GetByCommunitySince(ctx, community.ID, since, asOf)
}
