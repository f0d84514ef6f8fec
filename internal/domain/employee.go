package domain

import (
	"time"

	"github.com/google/uuid"
)

// Employee is a staff record. Staff have no part in the borrowing flow;
// the module exists for administration only.
type Employee struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BirthDate time.Time `json:"birth_date"`
	Email     string    `json:"email"`
}
