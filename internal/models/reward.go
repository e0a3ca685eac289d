package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RewardDiscount     = "discount"
	RewardFreeItem     = "free_item"
	RewardSpecialOffer = "special_offer"
)

type Reward struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	PointsRequired int64     `json:"points_required"`
	Type           string    `json:"reward_type"`
	IsActive       bool      `json:"is_active"`
	ImageURL       *string   `json:"image_url,omitempty"`
	Terms          *string   `json:"terms,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
