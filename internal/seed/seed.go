package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/yigit/unisphere-digest/internal/db"
)

// DemoSchoolName identifies the seeded school
const DemoSchoolName = "UniSphere Demo School"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// insertReturningID runs an INSERT ... RETURNING id
func insertReturningID(ctx context.Context, tx pgx.Tx, b squirrel.InsertBuilder) (int64, error) {
	sql, args, err := b.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateDefaultData creates a demo school whose digest exercises every
// selection rule: shared communities, an archived question, a question outside
// the window, a commented question and ineligible users. It does nothing if
// the school already exists.
func CreateDefaultData(ctx context.Context, pool *pgxpool.Pool, lgr zerolog.Logger) (bool, error) {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schools WHERE name = $1)`, DemoSchoolName).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking for demo school: %w", err)
	}
	if exists {
		lgr.Info().Msg("Demo data already present, skipping seed")
		return false, nil
	}

	now := time.Now()
	daysAgo := func(n int) time.Time { return now.Add(-time.Duration(n) * 24 * time.Hour) }

	err := db.WithTransaction(ctx, pool, lgr, func(ctx context.Context, tx pgx.Tx) error {
		schoolID, err := insertReturningID(ctx, tx, psql.Insert("schools").
			Columns("name", "primary_domain").
			Values(DemoSchoolName, "demo.unisphere.app"))
		if err != nil {
			return fmt.Errorf("school: %w", err)
		}

		courseIDs := make([]int64, 4)
		teamIDs := make([]int64, 4)
		for i := range courseIDs {
			courseIDs[i], err = insertReturningID(ctx, tx, psql.Insert("courses").
				Columns("school_id", "name").
				Values(schoolID, fmt.Sprintf("Course %d", i+1)))
			if err != nil {
				return fmt.Errorf("course: %w", err)
			}

			var droppedOut interface{}
			if i == 3 {
				droppedOut = daysAgo(1)
			}
			teamIDs[i], err = insertReturningID(ctx, tx, psql.Insert("teams").
				Columns("course_id", "name", "dropped_out_at").
				Values(courseIDs[i], fmt.Sprintf("Team %d", i+1), droppedOut))
			if err != nil {
				return fmt.Errorf("team: %w", err)
			}
		}

		type demoUser struct {
			team      int
			name      string
			digest    bool
			bouncedAt interface{}
		}
		users := []demoUser{
			{0, "Ada Team One", true, nil},
			{1, "Grace Team Two", true, nil},
			{1, "Linus Digest Off", false, nil},
			{1, "Barbara Bounced", true, daysAgo(7)},
			{2, "Alan Team Three", true, nil},
			{3, "Edsger Dropped Out", true, nil},
		}
		userIDs := make([]int64, len(users))
		for i, u := range users {
			userIDs[i], err = insertReturningID(ctx, tx, psql.Insert("users").
				Columns("school_id", "team_id", "name", "email", "daily_digest", "email_bounced_at").
				Values(schoolID, teamIDs[u.team], u.name, fmt.Sprintf("user%d@demo.unisphere.app", i+1), u.digest, u.bouncedAt))
			if err != nil {
				return fmt.Errorf("user: %w", err)
			}
		}

		// community n is linked to courses 1..n (community 3 to all four)
		communityIDs := make([]int64, 3)
		links := [][]int{{0}, {0, 1}, {0, 1, 2, 3}}
		for i := range communityIDs {
			communityIDs[i], err = insertReturningID(ctx, tx, psql.Insert("communities").
				Columns("school_id", "name", "created_at").
				Values(schoolID, fmt.Sprintf("Community %d", i+1), daysAgo(30-i)))
			if err != nil {
				return fmt.Errorf("community: %w", err)
			}

			b := psql.Insert("community_courses").Columns("community_id", "course_id")
			for _, c := range links[i] {
				b = b.Values(communityIDs[i], courseIDs[c])
			}
			sql, args, err := b.ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("community courses: %w", err)
			}
		}

		type demoQuestion struct {
			community int
			creator   int
			title     string
			createdAt time.Time
			archived  bool
			commented bool
		}
		questions := []demoQuestion{
			{0, 0, "How do I submit my first assignment?", now.Add(-time.Hour), false, false},
			{1, 1, "Is there a study group for week 2?", now.Add(-2 * time.Hour), false, false},
			{1, 2, "Where are the lecture slides?", now.Add(-3 * time.Hour), false, false},
			{2, 4, "Archived: old deadline question", daysAgo(2), true, false},
			{2, 4, "Can someone explain recursion?", daysAgo(3), false, false},
			{2, 4, "Question from last week", daysAgo(8), false, false},
			{2, 0, "Already answered question", daysAgo(4), false, true},
		}
		for _, q := range questions {
			qid, err := insertReturningID(ctx, tx, psql.Insert("questions").
				Columns("community_id", "creator_id", "title", "archived", "created_at").
				Values(communityIDs[q.community], userIDs[q.creator], q.title, q.archived, q.createdAt))
			if err != nil {
				return fmt.Errorf("question: %w", err)
			}
			if !q.commented {
				continue
			}
			sql, args, err := psql.Insert("comments").
				Columns("question_id", "creator_id", "body", "created_at").
				Values(qid, userIDs[1], "Answered in the forum.", q.createdAt.Add(time.Hour)).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("comment: %w", err)
			}
		}

		lgr.Info().Int64("schoolID", schoolID).Int("users", len(users)).Int("questions", len(questions)).Msg("Demo data created")
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("creating demo data: %w", err)
	}

	return true, nil
}
