package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/unisphere-digest/internal/app/models"
)

// CourseRepository handles course lookups
type CourseRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewCourseRepository creates a new CourseRepository
func NewCourseRepository(db *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{
		db: db,
		sb: psql,
	}
}

// GetByTeamID returns the course the team is enrolled in, or nil when the
// team does not exist or has no course.
func (r *CourseRepository) GetByTeamID(ctx context.Context, teamID int64) (*models.Course, error) {
	sql, args, err := r.sb.Select("c.id", "c.school_id", "c.name").
		From("teams t").
		Join("courses c ON c.id = t.course_id").
		Where(squirrel.Eq{"t.id": teamID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build team course query: %w", err)
	}

	course := &models.Course{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(&course.ID, &course.SchoolID, &course.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting course for team %d: %w", teamID, err)
	}

	return course, nil
}
