package repository

import (
	"strings"
	"testing"
)

func TestRedemptionSelect_ReadsSnapshotColumns(t *testing.T) {
	if strings.Contains(redemptionSelect, "JOIN") {
		t.Fatalf("redemption reads must not join the live catalog:\n%s", redemptionSelect)
	}
	if !strings.Contains(redemptionSelect, "rr.reward_name") {
		t.Fatalf("redemption reads must use the reward_name snapshot:\n%s", redemptionSelect)
	}
	if !strings.Contains(schemaSQL, "reward_name") {
		t.Fatal("schema is missing reward_redemptions.reward_name")
	}
}
