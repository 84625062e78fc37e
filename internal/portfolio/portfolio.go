package portfolio

import (
	"context"
	"time"

	"github.com/coinladder/api/internal/ledger"
	"github.com/coinladder/api/internal/marketdata"
	"github.com/coinladder/api/internal/types"
	"github.com/coinladder/api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Service joins replayed holdings with live prices into a valued
// portfolio. Price lookups are best-effort: an unreachable market-data
// upstream yields zero prices, never a failed page.
type Service struct {
	ledger *ledger.Service
	market *marketdata.Client
}

// NewService creates a new portfolio valuation service
func NewService(ledgerService *ledger.Service, market *marketdata.Client) *Service {
	return &Service{
		ledger: ledgerService,
		market: market,
	}
}

// Valuation computes the caller's portfolio with market values and
// per-asset net profit against cost basis.
func (s *Service) Valuation(ctx context.Context, userID string) (*types.PortfolioValuation, error) {
	holdings, err := s.ledger.ComputeHoldings(userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(holdings))
	for _, h := range holdings {
		ids = append(ids, h.CoinID)
	}

	prices := s.market.GetPricesForIDs(ctx, ids)
	coins := s.market.GetPrices(ctx, 0)
	coinsByID := make(map[string]marketdata.CoinPrice, len(coins))
	for _, coin := range coins {
		coinsByID[coin.ID] = coin
	}

	valuation := &types.PortfolioValuation{
		Assets:    make([]types.ValuedHolding, 0, len(holdings)),
		Timestamp: time.Now(),
	}
	for _, h := range holdings {
		price := prices[h.CoinID]
		value := h.Quantity * price

		asset := types.ValuedHolding{
			Holding:      h,
			CurrentPrice: price,
			CurrentValue: value,
			NetProfit:    value - h.CostBasis,
		}
		if coin, ok := coinsByID[h.CoinID]; ok {
			asset.Name = coin.Name
			asset.LogoURL = coin.LogoURL
		}

		valuation.Assets = append(valuation.Assets, asset)
		valuation.TotalValue += asset.CurrentValue
		valuation.TotalProfit += asset.NetProfit
	}

	log.Debug().
		Str("user_id", userID).
		Int("assets", len(valuation.Assets)).
		Float64("total_value", valuation.TotalValue).
		Msg("portfolio valuation computed")

	return valuation, nil
}

// GinHandlers contains HTTP handlers for portfolio endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for portfolio endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetValuationHandler handles GET requests for the caller's valued portfolio
func (h *GinHandlers) GetValuationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		valuation, err := h.service.Valuation(c.Request.Context(), userID)
		response.Handle(c, valuation, err)
	}
}
