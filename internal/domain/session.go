package domain

import "time"

// User is an account that owns sessions and, through them, jobs.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	PlanTier     string
	Credits      int
	CreatedAt    time.Time
}

// Session groups a user's jobs. Ownership checks route job lookups through
// the session so cross-tenant reads surface as not-found.
type Session struct {
	ID        string
	UserID    string
	Title     string
	Status    string
	CreatedAt time.Time
}
