package hub

import (
	"context"

	"github.com/timfel/ha-display/internal/config"
)

// PowerStats are the three energy readings shown on the power page. Each
// value is the raw hub state or ErrorState.
type PowerStats struct {
	PV          string
	Battery     string
	Consumption string
}

// PowerStats reads the three energy sensors. Nothing is cached.
func (c *Client) PowerStats(ctx context.Context, e config.Entities) PowerStats {
	return PowerStats{
		PV:          c.State(ctx, e.PVPower),
		Battery:     c.State(ctx, e.Battery),
		Consumption: c.State(ctx, e.Consumption),
	}
}
