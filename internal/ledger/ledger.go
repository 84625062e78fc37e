package ledger

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/coinladder/api/internal/types"
	"github.com/coinladder/api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Dust thresholds. The fine epsilon decides "is this sell the whole
// position" and snaps post-sell residue; the coarser floor absorbs
// float residue accumulated over many trades before holdings are
// reported. The gap between them is deliberate.
const (
	dustEpsilon = 1e-9
	dustFloor   = 1e-4
)

// Service implements wallet and trade-ledger operations: lazy wallet
// creation, atomic trade recording, and holdings replay.
type Service struct {
	db *Database
}

// NewService creates a new ledger service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// GetOrCreateWallet looks up the user's wallet, creating one with the
// starting balance and a placeholder display name when absent. The
// placeholder is derived from the user ID so it satisfies the unique
// display-name constraint; the primary profile-creation path is signup.
func (s *Service) GetOrCreateWallet(userID string) (*Wallet, error) {
	wallet, err := s.db.GetWallet(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet: %w", err)
	}
	if wallet != nil {
		return wallet, nil
	}

	placeholder := placeholderName(userID)
	wallet = &Wallet{
		UserID:        userID,
		DisplayName:   strings.ToLower(placeholder),
		PreferredName: placeholder,
		CashBalance:   StartingBalance,
	}
	if err := s.db.CreateWallet(wallet); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("display_name", wallet.DisplayName).
		Float64("cash_balance", wallet.CashBalance).
		Msg("created wallet with starting balance")

	return wallet, nil
}

// CreateProfile creates the wallet row for a fresh signup with the
// chosen display name and the starting balance.
func (s *Service) CreateProfile(userID, displayName string) (*Wallet, error) {
	wallet := &Wallet{
		UserID:        userID,
		DisplayName:   strings.ToLower(displayName),
		PreferredName: displayName,
		CashBalance:   StartingBalance,
	}
	if err := s.db.CreateWallet(wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// IsDisplayNameAvailable reports whether no wallet holds the normalized name.
func (s *Service) IsDisplayNameAvailable(displayName string) (bool, error) {
	if len(displayName) < 3 {
		return false, nil
	}
	existing, err := s.db.GetWalletByDisplayName(strings.ToLower(displayName))
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}

// RecordTrade persists one buy or sell: the conditional balance update
// and the trade append commit together or not at all.
func (s *Service) RecordTrade(userID string, trade *types.Trade) error {
	logger := log.With().
		Str("user_id", userID).
		Str("coin_id", trade.CoinID).
		Str("type", trade.Type).
		Float64("fiat_amount", trade.FiatAmount).
		Float64("crypto_amount", trade.CryptoAmount).
		Str("service", "ledger").
		Logger()

	if trade.Type != types.TradeTypeBuy && trade.Type != types.TradeTypeSell {
		return ErrInvalidTradeType
	}
	if trade.FiatAmount <= 0 || trade.CryptoAmount <= 0 {
		return ErrInvalidAmount
	}
	trade.UserID = userID

	cashChange := trade.FiatAmount
	if trade.Type == types.TradeTypeBuy {
		cashChange = -trade.FiatAmount
	}

	// Wallet must exist before the conditional update can match.
	wallet, err := s.GetOrCreateWallet(userID)
	if err != nil {
		return err
	}

	ok, err := s.db.ExecuteTrade(trade, cashChange)
	if err != nil {
		logger.Error().Err(err).Msg("failed to execute trade")
		return fmt.Errorf("failed to execute trade: %w", err)
	}
	if !ok {
		// Matched no row: the balance could not absorb the change.
		// Re-read for an accurate available amount in the error.
		if current, rerr := s.db.GetWallet(userID); rerr == nil && current != nil {
			wallet = current
		}
		logger.Warn().
			Float64("available", wallet.CashBalance).
			Msg("trade rejected, insufficient funds")
		return &InsufficientFundsError{
			Required:  math.Abs(cashChange),
			Available: wallet.CashBalance,
		}
	}

	logger.Info().Msg("trade recorded")
	return nil
}

// Buy validates and records a purchase at the given market price.
func (s *Service) Buy(userID string, req *types.TradeRequest) error {
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	if req.Price <= 0 {
		return ErrInvalidPrice
	}
	return s.RecordTrade(userID, &types.Trade{
		CoinID:         req.CoinID,
		CoinSymbol:     req.CoinSymbol,
		Type:           types.TradeTypeBuy,
		FiatAmount:     req.Amount * req.Price,
		CryptoAmount:   req.Amount,
		ExecutionPrice: req.Price,
	})
}

// Sell validates and records a sale. Unlike replay, which tolerates
// historical sells with no matching position, the entry path rejects
// selling more than the caller currently holds.
func (s *Service) Sell(userID string, req *types.TradeRequest) error {
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	if req.Price <= 0 {
		return ErrInvalidPrice
	}

	holdings, err := s.ComputeHoldings(userID)
	if err != nil {
		return err
	}
	held := 0.0
	for _, h := range holdings {
		if h.CoinID == req.CoinID {
			held = h.Quantity
			break
		}
	}
	if req.Amount > held+dustEpsilon {
		return &InsufficientHoldingsError{
			CoinID:    req.CoinID,
			Requested: req.Amount,
			Held:      held,
		}
	}

	return s.RecordTrade(userID, &types.Trade{
		CoinID:         req.CoinID,
		CoinSymbol:     req.CoinSymbol,
		Type:           types.TradeTypeSell,
		FiatAmount:     req.Amount * req.Price,
		CryptoAmount:   req.Amount,
		ExecutionPrice: req.Price,
	})
}

// ComputeHoldings replays the user's full trade history into current
// per-asset positions using weighted-average cost. It is a pure
// function of the ordered trade list; nothing is cached.
func (s *Service) ComputeHoldings(userID string) ([]types.Holding, error) {
	trades, err := s.db.GetTradesForReplay(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}
	return ReplayTrades(trades), nil
}

// GetTradeHistory returns the user's trades, newest first.
func (s *Service) GetTradeHistory(userID string) ([]types.Trade, error) {
	return s.db.GetTradeHistory(userID)
}

// ReplayTrades folds an ordered trade sequence into holdings.
//
// Buys accumulate quantity and cost basis. A sell of the entire
// remaining position (within dustEpsilon) resets both to exactly zero
// so no rounding residue survives a full liquidation. A partial sell
// removes the sold fraction of the cost basis. A sell with no open
// position is ignored: replay is best-effort over historical data, and
// the entry path already validates holdings.
func ReplayTrades(trades []types.Trade) []types.Holding {
	acc := make(map[string]*types.Holding)
	order := make([]string, 0, len(trades))

	for i := range trades {
		t := &trades[i]
		h, ok := acc[t.CoinID]
		if !ok {
			h = &types.Holding{CoinID: t.CoinID, CoinSymbol: t.CoinSymbol}
			acc[t.CoinID] = h
			order = append(order, t.CoinID)
		}

		switch t.Type {
		case types.TradeTypeBuy:
			h.Quantity += t.CryptoAmount
			h.CostBasis += t.FiatAmount

		case types.TradeTypeSell:
			switch {
			case math.Abs(t.CryptoAmount-h.Quantity) < dustEpsilon:
				// Full liquidation resets the basis exactly.
				h.Quantity = 0
				h.CostBasis = 0
			case h.Quantity > 0:
				sellRatio := t.CryptoAmount / h.Quantity
				h.CostBasis -= h.CostBasis * sellRatio
				h.Quantity -= t.CryptoAmount
				if h.Quantity < dustEpsilon {
					h.Quantity = 0
					h.CostBasis = 0
				}
			}
			// No open position: sell ignored.
		}
	}

	holdings := make([]types.Holding, 0, len(order))
	for _, coinID := range order {
		h := acc[coinID]
		if h.Quantity < dustFloor {
			h.Quantity = 0
			h.CostBasis = 0
			continue
		}
		holdings = append(holdings, *h)
	}
	return holdings
}

func placeholderName(userID string) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return "user-" + short
}

// IsRejection reports whether err is a trade-validation failure the
// caller should present as a bad request rather than a server fault.
func IsRejection(err error) bool {
	var funds *InsufficientFundsError
	var holdings *InsufficientHoldingsError
	return errors.As(err, &funds) ||
		errors.As(err, &holdings) ||
		errors.Is(err, ErrInvalidTradeType) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPrice)
}

// GinHandlers contains HTTP handlers for wallet and trading endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for wallet and trading endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetWalletHandler handles GET requests for the caller's wallet,
// creating it with the starting balance on first access
func (h *GinHandlers) GetWalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		wallet, err := h.service.GetOrCreateWallet(userID)
		if err != nil {
			response.InternalError(c, "Failed to load wallet")
			return
		}

		response.Success(c, types.WalletResponse{
			UserID:        wallet.UserID,
			DisplayName:   wallet.DisplayName,
			PreferredName: wallet.PreferredName,
			CashBalance:   wallet.CashBalance,
		})
	}
}

// BuyHandler handles POST requests to buy an asset at the current price
func (h *GinHandlers) BuyHandler() gin.HandlerFunc {
	return h.tradeHandler(func(userID string, req *types.TradeRequest) error {
		return h.service.Buy(userID, req)
	})
}

// SellHandler handles POST requests to sell part or all of a position
func (h *GinHandlers) SellHandler() gin.HandlerFunc {
	return h.tradeHandler(func(userID string, req *types.TradeRequest) error {
		return h.service.Sell(userID, req)
	})
}

func (h *GinHandlers) tradeHandler(execute func(string, *types.TradeRequest) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		var req types.TradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := execute(userID, &req); err != nil {
			if IsRejection(err) {
				response.BadRequest(c, err.Error())
				return
			}
			response.InternalError(c, "Failed to record trade")
			return
		}

		response.Success(c, gin.H{"message": "trade recorded"})
	}
}

// GetHoldingsHandler handles GET requests for the caller's current
// holdings, recomputed from the trade history
func (h *GinHandlers) GetHoldingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		holdings, err := h.service.ComputeHoldings(userID)
		if err != nil {
			response.InternalError(c, "Failed to compute holdings")
			return
		}

		response.Success(c, holdings)
	}
}

// GetTradesHandler handles GET requests for the caller's trade history
func (h *GinHandlers) GetTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing user identity")
			return
		}

		trades, err := h.service.GetTradeHistory(userID)
		if err != nil {
			response.InternalError(c, "Failed to fetch trades")
			return
		}

		response.Success(c, trades)
	}
}
