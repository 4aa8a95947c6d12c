package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/pkg/logger"
)

// CommunityRepository handles database operations for communities
type CommunityRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewCommunityRepository creates a new CommunityRepository
func NewCommunityRepository(db *pgxpool.Pool) *CommunityRepository {
	return &CommunityRepository{
		db: db,
		sb: psql,
	}
}

// GetByCourseID returns the communities linked to a course in creation order
func (r *CommunityRepository) GetByCourseID(ctx context.Context, courseID int64) ([]models.Community, error) {
	sql, args, err := r.sb.Select("c.id", "c.school_id", "c.name", "c.created_at").
		From("communities c").
		Join("community_courses cc ON cc.community_id = c.id").
		Where(squirrel.Eq{"cc.course_id": courseID}).
		OrderBy("c.created_at ASC", "c.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build communities query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("courseID", courseID).Msg("Error executing communities query")
		return nil, fmt.Errorf("error querying communities: %w", err)
	}
	defer rows.Close()

	communities := []models.Community{}
	for rows.Next() {
		var comm models.Community
		if err := rows.Scan(&comm.ID, &comm.SchoolID, &comm.Name, &comm.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning community row: %w", err)
		}
		communities = append(communities, comm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating community rows: %w", err)
	}

	return communities, nil
}
