package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/coinladder/api/internal/auth"
	"github.com/coinladder/api/internal/database"
	"github.com/coinladder/api/internal/ledger"
	"github.com/coinladder/api/internal/leaderboard"
	"github.com/coinladder/api/internal/marketdata"
	"github.com/coinladder/api/internal/portfolio"
	"github.com/coinladder/api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the paper-trading API server with graceful
// shutdown support
func main() {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DB_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "coinladder-secret-key"
	}

	marketURL := os.Getenv("MARKET_DATA_URL")
	if marketURL == "" {
		marketURL = "http://localhost:5000"
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	ledgerService := ledger.NewService(db)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	authService := auth.NewService(db, ledgerService, jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)

	leaderboardService := leaderboard.NewService(db, ledgerService)
	leaderboardHandlers := leaderboard.NewGinHandlers(leaderboardService)

	marketClient := marketdata.NewClient(marketURL)
	marketHandlers := marketdata.NewGinHandlers(marketClient)

	portfolioService := portfolio.NewService(ledgerService, marketClient)
	portfolioHandlers := portfolio.NewGinHandlers(portfolioService)

	// Create and start the price cache refresher
	refresher := marketdata.NewRefresher(marketClient)
	refresherCtx, refresherCancel := context.WithCancel(context.Background())
	defer refresherCancel()

	go refresher.Start(refresherCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, jwtSecret, authHandlers, ledgerHandlers, leaderboardHandlers, marketHandlers, portfolioHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for signup, login, and name checks
// - Wallet/trade/portfolio routes: Protected by JWT authentication
// - Market and leaderboard routes: Public read-only endpoints
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	leaderboardHandlers *leaderboard.GinHandlers,
	marketHandlers *marketdata.GinHandlers,
	portfolioHandlers *portfolio.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signup", authHandlers.SignupHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.GET("/display-name", authHandlers.CheckDisplayNameHandler())
		}

		// Wallet and trading routes
		wallet := v1.Group("/wallet")
		wallet.Use(middleware.JWTAuth(jwtSecret))
		{
			wallet.GET("", ledgerHandlers.GetWalletHandler())
		}

		trades := v1.Group("/trades")
		trades.Use(middleware.JWTAuth(jwtSecret))
		{
			trades.POST("/buy", ledgerHandlers.BuyHandler())
			trades.POST("/sell", ledgerHandlers.SellHandler())
			trades.GET("", ledgerHandlers.GetTradesHandler())
		}

		portfolioGroup := v1.Group("/portfolio")
		portfolioGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			portfolioGroup.GET("", ledgerHandlers.GetHoldingsHandler())
			portfolioGroup.GET("/valuation", portfolioHandlers.GetValuationHandler())
		}

		// Leaderboard routes
		board := v1.Group("/leaderboard")
		{
			board.GET("", leaderboardHandlers.GetLeaderboardHandler())
			board.GET("/rank", middleware.JWTAuth(jwtSecret), leaderboardHandlers.GetUserRankHandler())
		}

		// Market data routes
		market := v1.Group("/market")
		{
			market.GET("/prices", marketHandlers.GetPricesHandler())
			market.GET("/search", marketHandlers.SearchHandler())
			market.GET("/details/:coin_id", marketHandlers.GetDetailsHandler())
			market.GET("/history/:coin_id", marketHandlers.GetHistoryHandler())
			market.GET("/news", marketHandlers.GetNewsHandler())
		}
	}
}
