package models

import "time"

// Community is a shared discussion space visible through any of its linked courses
type Community struct {
	ID        int64     `json:"id" db:"id"`
	SchoolID  int64     `json:"schoolId" db:"school_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Question belongs to exactly one community. Only Archived changes after creation.
type Question struct {
	ID          int64     `json:"id" db:"id"`
	CommunityID int64     `json:"communityId" db:"community_id"`
	CreatorID   int64     `json:"creatorId" db:"creator_id"`
	Title       string    `json:"title" db:"title"`
	Archived    bool      `json:"archived" db:"archived"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`

	// CommentCount is derived at query time, never stored on the question.
	CommentCount int `json:"commentCount" db:"comment_count"`
}

// HasActivity reports whether anyone has commented on the question
func (q Question) HasActivity() bool {
	return q.CommentCount > 0
}
