package models

// Identity is the account holder as asserted by the external identity provider.
// UserID is the stable foreign key into Account.
type Identity struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
