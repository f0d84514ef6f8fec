package domain

import "github.com/google/uuid"

// Member of the Bookify service. Password holds the bcrypt hash and is
// never serialized.
type Member struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"-"`
	Enabled  bool      `json:"enabled"`
}
