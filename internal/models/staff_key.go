package models

import (
	"time"

	"github.com/google/uuid"
)

// StaffKey is a point-of-sale credential. The secret half is stored only as a bcrypt hash.
type StaffKey struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"key_prefix"`
	KeyHash   string    `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
