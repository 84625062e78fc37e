package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Refresher keeps the price cache warm so page loads rarely pay the
// upstream round trip.
type Refresher struct {
	client       *Client
	refreshDelay time.Duration
}

func NewRefresher(client *Client) *Refresher {
	return &Refresher{
		client:       client,
		refreshDelay: priceCacheTTL,
	}
}

// Start begins the price refresh loop
func (r *Refresher) Start(ctx context.Context) {
	logger := log.With().Str("component", "price_refresher").Logger()
	logger.Info().Msg("starting price refresher")

	ticker := time.NewTicker(r.refreshDelay)
	defer ticker.Stop()

	// Warm the cache once on startup.
	if _, err := r.client.RefreshPrices(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial price refresh failed")
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down price refresher")
			return
		case <-ticker.C:
			prices, err := r.client.RefreshPrices(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("price refresh failed, keeping stale cache")
				continue
			}
			logger.Debug().Int("coins", len(prices)).Msg("price cache refreshed")
		}
	}
}
