package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/models"
	"github.com/emberloaf/loyalty/internal/tier"
)

// IdentityPayloadType tags payloads produced for the loyalty card QR code.
const IdentityPayloadType = "loyalty"

// AccountView is the read-model shown to the presentation layer.
type AccountView struct {
	AccountID      uuid.UUID `json:"account_id"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	CurrentPoints  int64     `json:"current_points"`
	LifetimePoints int64     `json:"lifetime_points"`
	tier.Classification
	MemberSince time.Time `json:"member_since"`
}

// IdentityPayload is encoded into the scannable loyalty card. It identifies
// an account for point attribution; it does not authorize anything.
type IdentityPayload struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
}

// Accounts composes the ledger and the tier table into account views.
type Accounts struct {
	Store Store
	Tiers tier.Table
	Now   func() time.Time
}

func NewAccounts(store Store, tiers tier.Table) *Accounts {
	return &Accounts{Store: store, Tiers: tiers, Now: time.Now}
}

// GetAccountView recomputes balances from the ledger on every call.
func (a *Accounts) GetAccountView(ctx context.Context, accountID uuid.UUID) (*AccountView, error) {
	acc, err := a.Store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.view(ctx, acc)
}

// GetAccountViewForUser resolves an identity-provider user id to its account view.
func (a *Accounts) GetAccountViewForUser(ctx context.Context, userID string) (*AccountView, error) {
	acc, err := a.Store.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.view(ctx, acc)
}

func (a *Accounts) view(ctx context.Context, acc *models.Account) (*AccountView, error) {
	current, lifetime, err := a.Store.SumEntries(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	return &AccountView{
		AccountID:      acc.ID,
		UserID:         acc.UserID,
		Email:          acc.Email,
		DisplayName:    acc.DisplayName,
		CurrentPoints:  current,
		LifetimePoints: lifetime,
		Classification: a.Tiers.Classify(lifetime),
		MemberSince:    acc.CreatedAt,
	}, nil
}

// Enroll returns the account for the identity, creating an empty one on first
// sign-in. created reports whether a new account was made.
func (a *Accounts) Enroll(ctx context.Context, id models.Identity) (view *AccountView, created bool, err error) {
	if id.UserID == "" {
		return nil, false, fmt.Errorf("enroll: empty user id")
	}
	acc := &models.Account{
		ID:          uuid.New(),
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	}
	created, err = a.Store.CreateAccount(ctx, acc)
	if err != nil {
		return nil, false, fmt.Errorf("enroll %s: %w", id.UserID, err)
	}
	view, err = a.view(ctx, acc)
	return view, created, err
}

// IdentityPayload builds the card payload for accountID, stamped with the current time.
func (a *Accounts) IdentityPayload(ctx context.Context, accountID uuid.UUID) (*IdentityPayload, error) {
	acc, err := a.Store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &IdentityPayload{
		AccountID: acc.ID,
		Email:     acc.Email,
		Type:      IdentityPayloadType,
		Timestamp: a.Now().UnixMilli(),
	}, nil
}

// Encode renders the payload as the JSON string placed in the QR code.
func (p *IdentityPayload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseIdentityPayload decodes a scanned card payload.
func ParseIdentityPayload(data []byte) (*IdentityPayload, error) {
	var p IdentityPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Type != IdentityPayloadType {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidPayload, p.Type)
	}
	if p.AccountID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing account_id", ErrInvalidPayload)
	}
	return &p, nil
}
