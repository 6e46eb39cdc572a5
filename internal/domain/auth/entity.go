// internal/domain/auth/entity.go
package auth

import "time"

// User is the authenticated identity as reported by the CodePanel server.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"` // STUDENT, INSTRUCTOR, ADMIN
}

// FullName joins first and last name for display.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Session is the in-memory authenticated state: exactly one per process, or none.
// A non-nil session always carries a bearer token; ExpiresAt comes from the
// token's embedded expiry claim.
type Session struct {
	User        User
	AccessToken string
	FamilyID    string
	ExpiresAt   time.Time
}

// Expired reports whether the access token's embedded expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
