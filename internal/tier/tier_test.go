package tier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestClassify_Boundaries(t *testing.T) {
	table := Default()
	cases := []struct {
		points int64
		want   string
		mult   int64
	}{
		{0, "Bronze", 10},
		{249, "Bronze", 10},
		{250, "Silver", 12},
		{499, "Silver", 12},
		{500, "Gold", 15},
		{999, "Gold", 15},
		{1000, "Platinum", 15},
		{1_000_000, "Platinum", 15},
	}
	for _, tc := range cases {
		got := table.Classify(tc.points)
		if got.Tier != tc.want {
			t.Errorf("Classify(%d) tier = %s, want %s", tc.points, got.Tier, tc.want)
		}
		if got.EarnMultiplier != tc.mult {
			t.Errorf("Classify(%d) multiplier = %d, want %d", tc.points, got.EarnMultiplier, tc.mult)
		}
		// Idempotent.
		if again := table.Classify(tc.points); again.Tier != got.Tier || again.ProgressToNext != got.ProgressToNext {
			t.Errorf("Classify(%d) not stable: %+v vs %+v", tc.points, got, again)
		}
	}
}

func TestClassify_Progress(t *testing.T) {
	table := Default()

	c := table.Classify(125)
	if c.ProgressToNext != 0.5 {
		t.Errorf("progress at 125: got %v, want 0.5", c.ProgressToNext)
	}
	if c.NextTier == nil || *c.NextTier != "Silver" {
		t.Errorf("next tier at 125: got %v, want Silver", c.NextTier)
	}

	// Gold progresses toward the Platinum threshold.
	c = table.Classify(600)
	if c.ProgressToNext != 0.6 {
		t.Errorf("progress at 600: got %v, want 0.6", c.ProgressToNext)
	}

	c = table.Classify(1500)
	if c.NextTier != nil || c.NextThreshold != nil {
		t.Errorf("platinum should have no next tier, got %v %v", c.NextTier, c.NextThreshold)
	}
	if c.ProgressToNext != 1 {
		t.Errorf("platinum progress: got %v, want 1", c.ProgressToNext)
	}
}

func TestClassify_NegativeTreatedAsZero(t *testing.T) {
	c := Default().Classify(-40)
	if c.Tier != "Bronze" || c.ProgressToNext != 0 {
		t.Errorf("got %+v, want Bronze with 0 progress", c)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":          "tiers: []",
		"nonzero start":  "tiers:\n  - {name: A, min_points: 10, earn_multiplier: 1}",
		"not ascending":  "tiers:\n  - {name: A, min_points: 0, earn_multiplier: 1}\n  - {name: B, min_points: 0, earn_multiplier: 2}",
		"duplicate name": "tiers:\n  - {name: A, min_points: 0, earn_multiplier: 1}\n  - {name: A, min_points: 5, earn_multiplier: 2}",
		"zero mult":      "tiers:\n  - {name: A, min_points: 0, earn_multiplier: 0}",
		"missing name":   "tiers:\n  - {min_points: 0, earn_multiplier: 1}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidTable) {
				t.Errorf("expected ErrInvalidTable, got %v", err)
			}
		})
	}
}

func TestLoad_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	doc := "tiers:\n  - {name: Member, min_points: 0, earn_multiplier: 5}\n  - {name: VIP, min_points: 100, earn_multiplier: 20}\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := table.Classify(100).Tier; got != "VIP" {
		t.Errorf("got %s, want VIP", got)
	}

	def, err := Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if len(def.Tiers) != 4 {
		t.Errorf("default table has %d tiers, want 4", len(def.Tiers))
	}
}
