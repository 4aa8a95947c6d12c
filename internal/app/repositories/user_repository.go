package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/pkg/logger"
)

// UserRepository reads users in the shape the digest engine needs
type UserRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		db: db,
		sb: psql,
	}
}

// recipientQuery derives the eligibility flags in SQL so the engine never
// sees raw timestamps. A user without a team counts as team-active; the
// access resolver then finds no course for them.
func (r *UserRepository) recipientQuery() squirrel.SelectBuilder {
	return r.sb.Select(
		"u.id",
		"u.school_id",
		"u.team_id",
		"u.name",
		"u.email",
		"u.daily_digest",
		"(u.email_bounced_at IS NOT NULL) AS email_bounced",
		"(t.dropped_out_at IS NULL) AS team_active",
	).
		From("users u").
		LeftJoin("teams t ON t.id = u.team_id")
}

func scanRecipient(row pgx.Row, rec *models.Recipient) error {
	return row.Scan(
		&rec.UserID,
		&rec.SchoolID,
		&rec.TeamID,
		&rec.Name,
		&rec.Email,
		&rec.DigestEnabled,
		&rec.EmailBounced,
		&rec.TeamActive,
	)
}

// GetRecipientsBySchool returns every user of the school ordered by ID
func (r *UserRepository) GetRecipientsBySchool(ctx context.Context, schoolID int64) ([]models.Recipient, error) {
	sql, args, err := r.recipientQuery().
		Where(squirrel.Eq{"u.school_id": schoolID}).
		OrderBy("u.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build recipients query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("schoolID", schoolID).Msg("Error executing recipients query")
		return nil, fmt.Errorf("error querying recipients: %w", err)
	}
	defer rows.Close()

	recipients := []models.Recipient{}
	for rows.Next() {
		var rec models.Recipient
		if err := scanRecipient(rows, &rec); err != nil {
			return nil, fmt.Errorf("error scanning recipient row: %w", err)
		}
		recipients = append(recipients, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipient rows: %w", err)
	}

	return recipients, nil
}

// GetRecipient returns one user of the school
func (r *UserRepository) GetRecipient(ctx context.Context, schoolID, userID int64) (*models.Recipient, error) {
	sql, args, err := r.recipientQuery().
		Where(squirrel.Eq{"u.school_id": schoolID, "u.id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build recipient query: %w", err)
	}

	rec := &models.Recipient{}
	if err := scanRecipient(r.db.QueryRow(ctx, sql, args...), rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Int64("userID", userID).Msg("Error scanning recipient row")
		return nil, fmt.Errorf("error getting recipient: %w", err)
	}

	return rec, nil
}
