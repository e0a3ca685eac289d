// Package tier classifies lifetime points into loyalty tiers using an ordered,
// data-driven threshold table.
package tier

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_tiers.yaml
var defaultTiersYAML []byte

// ErrInvalidTable is returned when a threshold table fails validation.
var ErrInvalidTable = errors.New("invalid tier table")

// Tier is one band of the table.
type Tier struct {
	Name           string `yaml:"name" json:"name"`
	MinPoints      int64  `yaml:"min_points" json:"min_points"`
	EarnMultiplier int64  `yaml:"earn_multiplier" json:"earn_multiplier"`
}

// Table is an ascending list of tiers. The first tier must start at 0.
type Table struct {
	Tiers []Tier `yaml:"tiers" json:"tiers"`
}

// Classification is the read-model derived from a lifetime point value.
type Classification struct {
	Tier           string  `json:"tier"`
	EarnMultiplier int64   `json:"earn_multiplier"`
	ProgressToNext float64 `json:"progress_to_next"`
	NextTier       *string `json:"next_tier"`
	NextThreshold  *int64  `json:"next_threshold,omitempty"`
}

// Default returns the built-in table (Bronze/Silver/Gold/Platinum).
func Default() Table {
	t, err := Parse(defaultTiersYAML)
	if err != nil {
		panic(fmt.Sprintf("tier: embedded default table: %v", err))
	}
	return t
}

// Parse decodes and validates a YAML table.
func Parse(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("decode tier table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Load reads a table from path. An empty path yields the default table.
func Load(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read tier table: %w", err)
	}
	return Parse(data)
}

// Validate checks ordering and value constraints.
func (t Table) Validate() error {
	if len(t.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidTable)
	}
	if t.Tiers[0].MinPoints != 0 {
		return fmt.Errorf("%w: first tier must start at 0, got %d", ErrInvalidTable, t.Tiers[0].MinPoints)
	}
	seen := make(map[string]bool, len(t.Tiers))
	for i, tr := range t.Tiers {
		if tr.Name == "" {
			return fmt.Errorf("%w: tier %d has no name", ErrInvalidTable, i)
		}
		if seen[tr.Name] {
			return fmt.Errorf("%w: duplicate tier %q", ErrInvalidTable, tr.Name)
		}
		seen[tr.Name] = true
		if tr.EarnMultiplier <= 0 {
			return fmt.Errorf("%w: tier %q multiplier must be > 0", ErrInvalidTable, tr.Name)
		}
		if i > 0 && tr.MinPoints <= t.Tiers[i-1].MinPoints {
			return fmt.Errorf("%w: tier %q threshold %d not above %d", ErrInvalidTable, tr.Name, tr.MinPoints, t.Tiers[i-1].MinPoints)
		}
	}
	return nil
}

// Classify maps lifetime points to a tier. Negative input is treated as 0.
func (t Table) Classify(lifetimePoints int64) Classification {
	if lifetimePoints < 0 {
		lifetimePoints = 0
	}
	idx := 0
	for i, tr := range t.Tiers {
		if lifetimePoints >= tr.MinPoints {
			idx = i
		}
	}
	cur := t.Tiers[idx]
	c := Classification{
		Tier:           cur.Name,
		EarnMultiplier: cur.EarnMultiplier,
		ProgressToNext: 1,
	}
	if idx+1 < len(t.Tiers) {
		next := t.Tiers[idx+1]
		name, threshold := next.Name, next.MinPoints
		c.NextTier = &name
		c.NextThreshold = &threshold
		c.ProgressToNext = clamp01(float64(lifetimePoints) / float64(threshold))
	}
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
