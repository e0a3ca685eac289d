package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is one customer's loyalty enrollment. Points and LifetimePoints are
// maintained by the ledger append path only.
type Account struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Points         int64     `json:"points"`
	LifetimePoints int64     `json:"lifetime_points"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
