package models

import "time"

// School is the tenant boundary. Every digest run is scoped to one school.
type School struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	PrimaryDomain string    `json:"primaryDomain" db:"primary_domain"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}
