package leaderboard

import (
	"fmt"

	"github.com/coinladder/api/internal/ledger"
	"github.com/coinladder/api/internal/types"
	"github.com/coinladder/api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultSize is how many rows the leaderboard shows.
const DefaultSize = 10

// Service ranks wallets by cash balance. It is a read-only projection
// over the ledger's wallet rows.
type Service struct {
	db     *Database
	ledger *ledger.Service
}

// NewService creates a new leaderboard service with the given database connection
func NewService(gormDB *gorm.DB, ledgerService *ledger.Service) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		ledger: ledgerService,
	}
}

// Top returns the highest-balance wallets with their ranks.
func (s *Service) Top(limit int) ([]types.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultSize
	}

	wallets, err := s.db.GetTopWallets(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}

	entries := make([]types.LeaderboardEntry, 0, len(wallets))
	for i, w := range wallets {
		name := w.PreferredName
		if name == "" {
			name = w.DisplayName
		}
		entries = append(entries, types.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      w.UserID,
			DisplayName: name,
			CashBalance: w.CashBalance,
		})
	}
	return entries, nil
}

// UserRank returns the user's position within the full balance
// ordering, creating their wallet first if they have none yet.
func (s *Service) UserRank(userID string) (*types.UserRankResponse, error) {
	wallet, err := s.ledger.GetOrCreateWallet(userID)
	if err != nil {
		return nil, err
	}

	above, err := s.db.CountWalletsAbove(wallet.CashBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rank: %w", err)
	}

	return &types.UserRankResponse{
		Rank:        int(above) + 1,
		CashBalance: wallet.CashBalance,
	}, nil
}

// GinHandlers contains HTTP handlers for leaderboard endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for leaderboard endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetLeaderboardHandler handles GET requests for the top-10 ranking
func (h *GinHandlers) GetLeaderboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.service.Top(DefaultSize)
		if err != nil {
			log.Error().Err(err).Msg("leaderboard fetch failed")
			response.InternalError(c, "Failed to fetch leaderboard")
			return
		}

		response.Success(c, entries)
	}
}

// GetUserRankHandler handles GET requests for the caller's own rank
func (h *GinHandlers) GetUserRankHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		rank, err := h.service.UserRank(userID)
		response.Handle(c, rank, err)
	}
}
