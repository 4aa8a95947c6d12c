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

// SchoolRepository handles school database operations
type SchoolRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewSchoolRepository creates a new SchoolRepository
func NewSchoolRepository(db *pgxpool.Pool) *SchoolRepository {
	return &SchoolRepository{
		db: db,
		sb: psql,
	}
}

var schoolColumns = []string{"id", "name", "COALESCE(primary_domain, '')", "created_at"}

// GetByID retrieves a school by ID
func (r *SchoolRepository) GetByID(ctx context.Context, id int64) (*models.School, error) {
	sql, args, err := r.sb.Select(schoolColumns...).
		From("schools").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get school query: %w", err)
	}

	school := &models.School{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(&school.ID, &school.Name, &school.PrimaryDomain, &school.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Int64("schoolID", id).Msg("Error scanning school row")
		return nil, fmt.Errorf("error getting school by ID: %w", err)
	}

	return school, nil
}

// GetAll retrieves every school ordered by ID
func (r *SchoolRepository) GetAll(ctx context.Context) ([]models.School, error) {
	sql, args, err := r.sb.Select(schoolColumns...).
		From("schools").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get all schools query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing get all schools query")
		return nil, fmt.Errorf("error querying schools: %w", err)
	}
	defer rows.Close()

	schools := []models.School{}
	for rows.Next() {
		var school models.School
		if err := rows.Scan(&school.ID, &school.Name, &school.PrimaryDomain, &school.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning school row: %w", err)
		}
		schools = append(schools, school)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating school rows: %w", err)
	}

	return schools, nil
}
