package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/pkg/logger"
)

// QuestionRepository reads community questions
type QuestionRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewQuestionRepository creates a new QuestionRepository
func NewQuestionRepository(db *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{
		db: db,
		sb: psql,
	}
}

// GetByCommunitySince returns the community's questions created in
// [since, asOf] with their comment count as of asOf. Archived questions are
// included; callers filter on the flag.
func (r *QuestionRepository) GetByCommunitySince(ctx context.Context, communityID int64, since, asOf time.Time) ([]models.Question, error) {
	sql, args, err := r.sb.Select("q.id", "q.community_id", "q.creator_id", "q.title", "q.archived", "q.created_at").
		Column(squirrel.Expr("(SELECT COUNT(*) FROM comments cm WHERE cm.question_id = q.id AND cm.created_at <= ?) AS comment_count", asOf)).
		From("questions q").
		Where(squirrel.Eq{"q.community_id": communityID}).
		Where(squirrel.GtOrEq{"q.created_at": since}).
		Where(squirrel.LtOrEq{"q.created_at": asOf}).
		OrderBy("q.created_at DESC", "q.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build questions query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("communityID", communityID).Msg("Error executing questions query")
		return nil, fmt.Errorf("error querying questions: %w", err)
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.CommunityID, &q.CreatorID, &q.Title, &q.Archived, &q.CreatedAt, &q.CommentCount); err != nil {
			return nil, fmt.Errorf("error scanning question row: %w", err)
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating question rows: %w", err)
	}

	return questions, nil
}
