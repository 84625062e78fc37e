package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coinladder/api/internal/auth"
	"github.com/coinladder/api/internal/database"
	"github.com/coinladder/api/internal/ledger"
	"github.com/coinladder/api/internal/leaderboard"
	"github.com/coinladder/api/internal/types"
	"github.com/coinladder/api/pkg/middleware"
)

const (
	numTraders     = 5
	minTradesEach  = 10
	maxTradesEach  = 40
	serverAddress  = "http://localhost:8080"
	simulationJWT  = "coinladder-secret-key"
	simulationData = "simulation.db"
)

// coin is one asset the simulated traders can trade
type coin struct {
	id     string
	symbol string
	price  float64
}

var coins = []coin{
	{"bitcoin", "btc", 65000},
	{"ethereum", "eth", 3200},
	{"solana", "sol", 150},
	{"dogecoin", "doge", 0.12},
	{"cardano", "ada", 0.45},
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the paper-trading API
type simulationClient struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: map[string]*routeStats{
			"signup":      {name: "Signup"},
			"buy":         {name: "Buy"},
			"sell":        {name: "Sell"},
			"holdings":    {name: "Holdings"},
			"wallet":      {name: "Wallet"},
			"leaderboard": {name: "Leaderboard"},
		},
	}
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rs := sc.stats[route]
	rs.addDuration(time.Since(start))
	if failed {
		rs.failures++
	}
}

// signup registers a fresh simulated trader and returns their JWT
func (sc *simulationClient) signup(displayName string) (string, error) {
	start := time.Now()
	failed := true
	defer func() { sc.record("signup", start, failed) }()

	body, err := json.Marshal(map[string]string{
		"email":        fmt.Sprintf("%s@simulation.local", displayName),
		"password":     "simulated-password-1",
		"display_name": displayName,
	})
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/signup", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("signup failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if result.Data.Token == "" {
		return "", fmt.Errorf("no token in response: %s", string(respBody))
	}

	failed = false
	return result.Data.Token, nil
}

// trade submits a buy or sell for the authenticated trader
func (sc *simulationClient) trade(token, side string, req *types.TradeRequest) error {
	route := "buy"
	if side == types.TradeTypeSell {
		route = "sell"
	}
	start := time.Now()
	failed := true
	defer func() { sc.record(route, start, failed) }()

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/trades/%s", sc.baseURL, strings.ToLower(side)),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Trade response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("trade failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	failed = false
	return nil
}

// getHoldings fetches the trader's current portfolio
func (sc *simulationClient) getHoldings(token string) ([]types.Holding, error) {
	start := time.Now()
	failed := true
	defer func() { sc.record("holdings", start, failed) }()

	var result struct {
		Success bool            `json:"success"`
		Data    []types.Holding `json:"data"`
	}
	if err := sc.getJSON(token, "/api/v1/portfolio", &result); err != nil {
		return nil, err
	}

	failed = false
	return result.Data, nil
}

// getWallet fetches the trader's wallet
func (sc *simulationClient) getWallet(token string) (*types.WalletResponse, error) {
	start := time.Now()
	failed := true
	defer func() { sc.record("wallet", start, failed) }()

	var result struct {
		Success bool                 `json:"success"`
		Data    types.WalletResponse `json:"data"`
	}
	if err := sc.getJSON(token, "/api/v1/wallet", &result); err != nil {
		return nil, err
	}

	failed = false
	return &result.Data, nil
}

// getLeaderboard fetches the final ranking
func (sc *simulationClient) getLeaderboard() ([]types.LeaderboardEntry, error) {
	start := time.Now()
	failed := true
	defer func() { sc.record("leaderboard", start, failed) }()

	var result struct {
		Success bool                     `json:"success"`
		Data    []types.LeaderboardEntry `json:"data"`
	}
	if err := sc.getJSON("", "/api/v1/leaderboard", &result); err != nil {
		return nil, err
	}

	failed = false
	return result.Data, nil
}

func (sc *simulationClient) getJSON(token, path string, out interface{}) error {
	req, err := http.NewRequest("GET", sc.baseURL+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// traderStats aggregates what one simulated trader did
type traderStats struct {
	buys         int
	sells        int
	rejected     int
	failed       int
	finalBalance float64
}

// main runs the paper-trading simulation
// It starts a local API server and simulates multiple concurrent traders
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient := newSimulationClient()
	startTime := time.Now()

	var wg sync.WaitGroup
	results := make(chan traderStats, numTraders)

	for i := 0; i < numTraders; i++ {
		wg.Add(1)
		go func(traderID int) {
			defer wg.Done()
			results <- runTrader(traderID, simClient)
		}(i)
	}

	wg.Wait()
	close(results)

	// Aggregate trader results
	var totals traderStats
	traders := 0
	for r := range results {
		traders++
		totals.buys += r.buys
		totals.sells += r.sells
		totals.rejected += r.rejected
		totals.failed += r.failed
	}

	// Fetch the final leaderboard
	entries, err := simClient.getLeaderboard()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch leaderboard")
	}

	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("PAPER TRADING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Trade Statistics
----------------
Traders:          %d
Buys:             %d
Sells:            %d
Rejected:         %d
Failed:           %d
Duration:         %v

Final Leaderboard
-----------------
`, traders, totals.buys, totals.sells, totals.rejected, totals.failed,
		duration.Round(time.Millisecond))

	for _, entry := range entries {
		fmt.Printf("#%-3d %-24s $%.2f\n", entry.Rank, entry.DisplayName, entry.CashBalance)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("traders", traders).
		Int("buys", totals.buys).
		Int("sells", totals.sells).
		Int("rejected", totals.rejected).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// runTrader signs up one simulated trader and performs a random
// sequence of buys and sells against the API
func runTrader(traderID int, simClient *simulationClient) traderStats {
	stats := traderStats{}
	displayName := fmt.Sprintf("sim-trader-%s", uuid.New().String()[:8])

	token, err := simClient.signup(displayName)
	if err != nil {
		log.Error().Err(err).Int("trader_id", traderID).Msg("Failed to sign up trader")
		stats.failed++
		return stats
	}

	log.Info().
		Int("trader_id", traderID).
		Str("display_name", displayName).
		Msg("Trader signed up")

	numTrades := rand.Intn(maxTradesEach-minTradesEach) + minTradesEach
	for i := 0; i < numTrades; i++ {
		// Mostly buys, with sells mixed in once positions exist
		if rand.Float64() < 0.35 {
			if sellRandomPosition(simClient, token, &stats) {
				continue
			}
		}
		buyRandomCoin(simClient, token, &stats)

		// Random sleep between trades
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}

	if wallet, err := simClient.getWallet(token); err == nil {
		stats.finalBalance = wallet.CashBalance
		log.Info().
			Int("trader_id", traderID).
			Float64("final_balance", wallet.CashBalance).
			Int("buys", stats.buys).
			Int("sells", stats.sells).
			Msg("Trader finished")
	}

	return stats
}

// buyRandomCoin buys a small random position in a random coin at a
// jittered price
func buyRandomCoin(simClient *simulationClient, token string, stats *traderStats) {
	c := coins[rand.Intn(len(coins))]
	price := c.price * (1 + (rand.Float64()*0.04 - 0.02))
	budget := 50 + rand.Float64()*450

	req := &types.TradeRequest{
		CoinID:     c.id,
		CoinSymbol: c.symbol,
		Amount:     budget / price,
		Price:      price,
	}

	if err := simClient.trade(token, types.TradeTypeBuy, req); err != nil {
		if strings.Contains(err.Error(), "insufficient") {
			stats.rejected++
		} else {
			stats.failed++
			log.Error().Err(err).Str("coin_id", c.id).Msg("Buy failed")
		}
		return
	}
	stats.buys++
}

// sellRandomPosition sells a random fraction of a random open position.
// Returns false when the trader holds nothing yet.
func sellRandomPosition(simClient *simulationClient, token string, stats *traderStats) bool {
	holdings, err := simClient.getHoldings(token)
	if err != nil {
		stats.failed++
		return true
	}
	if len(holdings) == 0 {
		return false
	}

	h := holdings[rand.Intn(len(holdings))]
	var price float64
	for _, c := range coins {
		if c.id == h.CoinID {
			price = c.price * (1 + (rand.Float64()*0.04 - 0.02))
			break
		}
	}

	amount := h.Quantity
	if rand.Float64() < 0.7 {
		// Partial sell
		amount = h.Quantity * (0.2 + rand.Float64()*0.6)
	}

	req := &types.TradeRequest{
		CoinID:     h.CoinID,
		CoinSymbol: h.CoinSymbol,
		Amount:     amount,
		Price:      price,
	}

	if err := simClient.trade(token, types.TradeTypeSell, req); err != nil {
		if strings.Contains(err.Error(), "insufficient") {
			stats.rejected++
		} else {
			stats.failed++
			log.Error().Err(err).Str("coin_id", h.CoinID).Msg("Sell failed")
		}
		return true
	}
	stats.sells++
	return true
}

// startServer initializes and starts the paper-trading API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase(simulationData)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	ledgerService := ledger.NewService(db)
	authService := auth.NewService(db, ledgerService, simulationJWT)
	leaderboardService := leaderboard.NewService(db, ledgerService)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	leaderboardHandlers := leaderboard.NewGinHandlers(leaderboardService)

	// Setup routes
	setupRoutes(router, authHandlers, ledgerHandlers, leaderboardHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures the endpoints the simulation exercises
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	leaderboardHandlers *leaderboard.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signup", authHandlers.SignupHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Wallet and trading routes
		wallet := v1.Group("/wallet")
		wallet.Use(middleware.JWTAuth(simulationJWT))
		{
			wallet.GET("", ledgerHandlers.GetWalletHandler())
		}

		trades := v1.Group("/trades")
		trades.Use(middleware.JWTAuth(simulationJWT))
		{
			trades.POST("/buy", ledgerHandlers.BuyHandler())
			trades.POST("/sell", ledgerHandlers.SellHandler())
			trades.GET("", ledgerHandlers.GetTradesHandler())
		}

		portfolioGroup := v1.Group("/portfolio")
		portfolioGroup.Use(middleware.JWTAuth(simulationJWT))
		{
			portfolioGroup.GET("", ledgerHandlers.GetHoldingsHandler())
		}

		// Leaderboard routes
		board := v1.Group("/leaderboard")
		{
			board.GET("", leaderboardHandlers.GetLeaderboardHandler())
			board.GET("/rank", middleware.JWTAuth(simulationJWT), leaderboardHandlers.GetUserRankHandler())
		}
	}
}
