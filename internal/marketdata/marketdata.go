package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coinladder/api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// priceCacheTTL matches the upstream's own refresh cadence; price lists
// older than this are refetched.
const priceCacheTTL = 60 * time.Second

// Client talks to the external crypto market-data proxy. All read
// failures on supplementary data degrade to empty results rather than
// failing the caller's page.
type Client struct {
	baseURL string
	http    *http.Client

	mu        sync.RWMutex
	prices    []CoinPrice
	fetchedAt time.Time
}

// NewClient creates a market-data client for the given proxy base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetPrices returns the current price list, at most limit rows when
// limit > 0. Served from the short-TTL cache when fresh; degrades to
// an empty list on upstream failure.
func (c *Client) GetPrices(ctx context.Context, limit int) []CoinPrice {
	prices := c.cachedPrices()
	if prices == nil {
		var err error
		prices, err = c.RefreshPrices(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("price fetch failed, serving empty list")
			return []CoinPrice{}
		}
	}

	if limit > 0 && limit < len(prices) {
		return prices[:limit]
	}
	return prices
}

// GetPricesForIDs returns a coin-id to price map for the given assets.
// Missing or failed lookups simply leave entries out, so callers see a
// zero price rather than an error.
func (c *Client) GetPricesForIDs(ctx context.Context, ids []string) map[string]float64 {
	result := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return result
	}

	body, err := c.get(ctx, "/api/crypto/prices-by-ids", url.Values{"ids": {strings.Join(ids, ",")}})
	if err != nil {
		log.Warn().Err(err).Strs("ids", ids).Msg("prices-by-ids fetch failed, serving zero prices")
		return result
	}
	if err := json.Unmarshal(body, &result); err != nil {
		log.Warn().Err(err).Msg("prices-by-ids decode failed")
	}
	return result
}

// Search queries the upstream search endpoint. Empty queries and
// upstream failures both yield an empty list.
func (c *Client) Search(ctx context.Context, query string) []CoinPrice {
	if query == "" {
		return []CoinPrice{}
	}

	body, err := c.get(ctx, "/api/crypto/search", url.Values{"query": {query}})
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("search failed, serving empty list")
		return []CoinPrice{}
	}

	var results []CoinPrice
	if err := json.Unmarshal(body, &results); err != nil {
		log.Warn().Err(err).Msg("search decode failed")
		return []CoinPrice{}
	}
	return results
}

// GetDetails returns the upstream detail document for one coin, or nil
// when the coin is unknown or the upstream is unavailable.
func (c *Client) GetDetails(ctx context.Context, coinID string) CoinDetails {
	body, err := c.get(ctx, "/api/crypto/details/"+url.PathEscape(strings.ToLower(coinID)), nil)
	if err != nil {
		log.Warn().Err(err).Str("coin_id", coinID).Msg("details fetch failed")
		return nil
	}
	return CoinDetails(body)
}

// GetHistory returns the price series for a coin over the duration.
// Unlike the other reads this error is surfaced: a chart with no data
// is a failure the UI wants to know about.
func (c *Client) GetHistory(ctx context.Context, coinID, duration string) (PriceHistory, error) {
	values := url.Values{}
	if duration != "" {
		values.Set("duration", duration)
	}
	body, err := c.get(ctx, "/api/crypto/history/"+url.PathEscape(strings.ToLower(coinID)), values)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	return PriceHistory(body), nil
}

// GetNews returns one page of news articles, empty on failure.
func (c *Client) GetNews(ctx context.Context, page int) []NewsArticle {
	if page < 1 {
		page = 1
	}

	body, err := c.get(ctx, "/api/crypto/news", url.Values{"page": {strconv.Itoa(page)}})
	if err != nil {
		log.Warn().Err(err).Int("page", page).Msg("news fetch failed, serving empty list")
		return []NewsArticle{}
	}

	var articles []NewsArticle
	if err := json.Unmarshal(body, &articles); err != nil {
		log.Warn().Err(err).Msg("news decode failed")
		return []NewsArticle{}
	}
	return articles
}

// RefreshPrices refetches the full price list and replaces the cache.
func (c *Client) RefreshPrices(ctx context.Context) ([]CoinPrice, error) {
	body, err := c.get(ctx, "/api/crypto/prices", nil)
	if err != nil {
		return nil, err
	}

	var prices []CoinPrice
	if err := json.Unmarshal(body, &prices); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}

	c.mu.Lock()
	c.prices = prices
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return prices, nil
}

func (c *Client) cachedPrices() []CoinPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.prices == nil || time.Since(c.fetchedAt) > priceCacheTTL {
		return nil
	}
	return c.prices
}

func (c *Client) get(ctx context.Context, path string, values url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, path)
	}

	return io.ReadAll(resp.Body)
}

// GinHandlers contains HTTP handlers for market-data endpoints
type GinHandlers struct {
	client *Client
}

// NewGinHandlers creates a new set of HTTP handlers for market-data endpoints
func NewGinHandlers(client *Client) *GinHandlers {
	return &GinHandlers{
		client: client,
	}
}

// GetPricesHandler handles GET requests for the current price list
func (h *GinHandlers) GetPricesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				response.BadRequest(c, "limit must be a non-negative integer")
				return
			}
			limit = parsed
		}

		response.Success(c, h.client.GetPrices(c.Request.Context(), limit))
	}
}

// SearchHandler handles GET requests to search assets by name or symbol
func (h *GinHandlers) SearchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.client.Search(c.Request.Context(), c.Query("query")))
	}
}

// GetDetailsHandler handles GET requests for one coin's detail document
func (h *GinHandlers) GetDetailsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		details := h.client.GetDetails(c.Request.Context(), c.Param("coin_id"))
		if details == nil {
			response.NotFound(c, "Coin not found")
			return
		}
		response.Success(c, details)
	}
}

// GetHistoryHandler handles GET requests for a coin's price series
func (h *GinHandlers) GetHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := h.client.GetHistory(c.Request.Context(), c.Param("coin_id"), c.Query("duration"))
		if err != nil {
			response.InternalError(c, "Failed to fetch price history")
			return
		}
		response.Success(c, history)
	}
}

// GetNewsHandler handles GET requests for one page of news
func (h *GinHandlers) GetNewsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := 1
		if raw := c.Query("page"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				response.BadRequest(c, "page must be a positive integer")
				return
			}
			page = parsed
		}

		response.Success(c, h.client.GetNews(c.Request.Context(), page))
	}
}
