package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/models"
	"github.com/emberloaf/loyalty/internal/services"
)

func TestEnroll_GetOrCreate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	ident := models.Identity{UserID: "auth|42", Email: "a@example.com", DisplayName: "Ada"}

	v1, created, err := fx.accounts.Enroll(ctx, ident)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if !created || v1.CurrentPoints != 0 || v1.Tier != "Bronze" {
		t.Fatalf("first enroll = %+v created=%v", v1, created)
	}
	fx.credit(t, v1.AccountID, 40)

	v2, created, err := fx.accounts.Enroll(ctx, ident)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if created || v2.AccountID != v1.AccountID || v2.CurrentPoints != 40 {
		t.Fatalf("second enroll = %+v created=%v", v2, created)
	}

	if _, _, err := fx.accounts.Enroll(ctx, models.Identity{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestGetAccountView(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.accounts.GetAccountView(ctx, uuid.New()); !errors.Is(err, services.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
	if _, err := fx.accounts.GetAccountViewForUser(ctx, "nobody"); !errors.Is(err, services.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}

	id := fx.enroll(t, "u1")
	fx.credit(t, id, 375)
	v, err := fx.accounts.GetAccountViewForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetAccountViewForUser: %v", err)
	}
	if v.Tier != "Silver" || v.EarnMultiplier != 12 || v.ProgressToNext != 0.75 {
		t.Fatalf("view = %+v", v)
	}
	if v.NextTier == nil || *v.NextTier != "Gold" {
		t.Fatalf("next tier = %v", v.NextTier)
	}
	if !v.MemberSince.Equal(fx.now) {
		t.Fatalf("member since = %v", v.MemberSince)
	}

	// Views never outlive a mutation.
	fx.credit(t, id, 1000)
	v, _ = fx.accounts.GetAccountView(ctx, id)
	if v.Tier != "Platinum" || v.ProgressToNext != 1 || v.NextTier != nil {
		t.Fatalf("top tier view = %+v", v)
	}
}

func TestIdentityPayload_RoundTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")

	p, err := fx.accounts.IdentityPayload(ctx, id)
	if err != nil {
		t.Fatalf("IdentityPayload: %v", err)
	}
	if p.Type != services.IdentityPayloadType || p.Timestamp != fx.now.UnixMilli() {
		t.Fatalf("payload = %+v", p)
	}
	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := services.ParseIdentityPayload([]byte(raw))
	if err != nil {
		t.Fatalf("ParseIdentityPayload: %v", err)
	}
	if back.AccountID != id || back.Email != "u1@example.com" {
		t.Fatalf("decoded = %+v", back)
	}

	bad := []string{
		`not json`,
		`{"account_id":"` + id.String() + `","type":"coupon"}`,
		`{"type":"loyalty"}`,
	}
	for _, b := range bad {
		if _, err := services.ParseIdentityPayload([]byte(b)); !errors.Is(err, services.ErrInvalidPayload) {
			t.Fatalf("ParseIdentityPayload(%s): err = %v", b, err)
		}
	}
}
