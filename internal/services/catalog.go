package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/models"
)

// Catalog reads the reward catalog. It never mutates it.
type Catalog struct {
	Store Store
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{Store: store}
}

// RewardOption is an active reward annotated for one account.
type RewardOption struct {
	*models.Reward
	Affordable bool `json:"affordable"`
}

// ListActiveRewards returns active rewards, cheapest first.
func (c *Catalog) ListActiveRewards(ctx context.Context) ([]*models.Reward, error) {
	rewards, err := c.Store.ListActiveRewards(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Reward, 0, len(rewards))
	for _, r := range rewards {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PointsRequired != out[j].PointsRequired {
			return out[i].PointsRequired < out[j].PointsRequired
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ListRewardsFor annotates active rewards with whether the account can afford them.
func (c *Catalog) ListRewardsFor(ctx context.Context, accountID uuid.UUID) ([]RewardOption, error) {
	if _, err := c.Store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	current, _, err := c.Store.SumEntries(ctx, accountID)
	if err != nil {
		return nil, err
	}
	rewards, err := c.ListActiveRewards(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RewardOption, len(rewards))
	for i, r := range rewards {
		out[i] = RewardOption{Reward: r, Affordable: current >= r.PointsRequired}
	}
	return out, nil
}
