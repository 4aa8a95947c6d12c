package repositories

import (
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// psql is the statement builder shared by all repositories
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repositories holds all the repository instances
type Repositories struct {
	SchoolRepository    *SchoolRepository
	UserRepository      *UserRepository
	CourseRepository    *CourseRepository
	CommunityRepository *CommunityRepository
	QuestionRepository  *QuestionRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		SchoolRepository:    NewSchoolRepository(db),
		UserRepository:      NewUserRepository(db),
		CourseRepository:    NewCourseRepository(db),
		CommunityRepository: NewCommunityRepository(db),
		QuestionRepository:  NewQuestionRepository(db),
	}
}
