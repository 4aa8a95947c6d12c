package models

// Recipient is a school user as seen by the digest engine. The boolean flags
// are resolved from the user's preferences, bounce state and team.
type Recipient struct {
	UserID        int64  `json:"userId" db:"id"`
	SchoolID      int64  `json:"schoolId" db:"school_id"`
	TeamID        *int64 `json:"teamId,omitempty" db:"team_id"` // Nullable
	Name          string `json:"name" db:"name"`
	Email         string `json:"email" db:"email"`
	DigestEnabled bool   `json:"digestEnabled" db:"daily_digest"`
	EmailBounced  bool   `json:"emailBounced" db:"email_bounced"`
	TeamActive    bool   `json:"teamActive" db:"team_active"`
}
