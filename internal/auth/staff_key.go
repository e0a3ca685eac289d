package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/emberloaf/loyalty/internal/models"
)

// StaffKeyPrefix starts every point-of-sale key: pos_<prefix>_<secret>.
const StaffKeyPrefix = "pos_"

// GenerateStaffKey mints a new POS key. The raw key is shown once; only the
// bcrypt hash of its secret half is stored.
func GenerateStaffKey(name string) (string, *models.StaffKey, error) {
	prefix, err := randomHex(4)
	if err != nil {
		return "", nil, err
	}
	secret, err := randomHex(24)
	if err != nil {
		return "", nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash staff key: %w", err)
	}
	k := &models.StaffKey{
		ID:        uuid.New(),
		Name:      name,
		KeyPrefix: prefix,
		KeyHash:   string(hash),
		IsActive:  true,
	}
	return StaffKeyPrefix + prefix + "_" + secret, k, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
