package marketdata

import "encoding/json"

// CoinPrice is one row of the upstream price feed.
type CoinPrice struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price,omitempty"`
	PercentChange24h float64 `json:"percent_change_24h,omitempty"`
	PercentChange7d  float64 `json:"percent_change_7d,omitempty"`
	LogoURL          string  `json:"logo_url"`
}

// NewsArticle is one upstream news item.
type NewsArticle struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Source string `json:"source"`
	Date   int64  `json:"date"`
	Image  string `json:"image"`
}

// CoinDetails and PriceHistory are passed through to the UI unchanged;
// the upstream shape is not interpreted here.
type (
	CoinDetails  = json.RawMessage
	PriceHistory = json.RawMessage
)
