package models

import "time"

// Course groups enrolled teams. Communities are linked to courses.
type Course struct {
	ID       int64  `json:"id" db:"id"`
	SchoolID int64  `json:"schoolId" db:"school_id"`
	Name     string `json:"name" db:"name"`
}

// Team is enrolled in exactly one course
type Team struct {
	ID           int64      `json:"id" db:"id"`
	CourseID     int64      `json:"courseId" db:"course_id"`
	Name         string     `json:"name" db:"name"`
	DroppedOutAt *time.Time `json:"droppedOutAt,omitempty" db:"dropped_out_at"` // Nullable
}
