package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testPrices() []CoinPrice {
	return []CoinPrice{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", Price: 65000},
		{ID: "ethereum", Name: "Ethereum", Symbol: "eth", Price: 3200},
		{ID: "solana", Name: "Solana", Symbol: "sol", Price: 150},
	}
}

func newUpstream(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/crypto/prices", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		json.NewEncoder(w).Encode(testPrices())
	})
	mux.HandleFunc("/api/crypto/prices-by-ids", func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("ids")
		if ids == "" {
			http.Error(w, "missing ids", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]float64{"bitcoin": 65000, "ethereum": 3200})
	})
	mux.HandleFunc("/api/crypto/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "bit" {
			json.NewEncoder(w).Encode(testPrices()[:1])
			return
		}
		json.NewEncoder(w).Encode([]CoinPrice{})
	})
	mux.HandleFunc("/api/crypto/details/bitcoin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"bitcoin","market_cap":1000000}`))
	})
	mux.HandleFunc("/api/crypto/history/bitcoin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[[1,65000],[2,65100]]}`))
	})
	mux.HandleFunc("/api/crypto/news", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]NewsArticle{{Title: "Markets up", Source: "wire"}})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGetPricesCachesUpstream(t *testing.T) {
	var hits int64
	server := newUpstream(t, &hits)
	client := NewClient(server.URL)
	ctx := context.Background()

	prices := client.GetPrices(ctx, 0)
	if len(prices) != 3 {
		t.Fatalf("got %d prices, want 3", len(prices))
	}
	if prices[0].ID != "bitcoin" || prices[0].Price != 65000 {
		t.Errorf("first price = %+v, want bitcoin at 65000", prices[0])
	}

	// Second read inside the TTL must come from the cache.
	client.GetPrices(ctx, 0)
	client.GetPrices(ctx, 2)
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("upstream hit %d times, want 1", got)
	}
}

func TestGetPricesLimit(t *testing.T) {
	var hits int64
	server := newUpstream(t, &hits)
	client := NewClient(server.URL)

	prices := client.GetPrices(context.Background(), 2)
	if len(prices) != 2 {
		t.Errorf("got %d prices with limit 2, want 2", len(prices))
	}

	prices = client.GetPrices(context.Background(), 100)
	if len(prices) != 3 {
		t.Errorf("got %d prices with oversized limit, want all 3", len(prices))
	}
}

func TestGetPricesDegradesOnUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	prices := client.GetPrices(context.Background(), 0)
	if prices == nil || len(prices) != 0 {
		t.Errorf("GetPrices() on failing upstream = %+v, want empty list", prices)
	}
}

func TestGetPricesForIDs(t *testing.T) {
	var hits int64
	server := newUpstream(t, &hits)
	client := NewClient(server.URL)

	prices := client.GetPricesForIDs(context.Background(), []string{"bitcoin", "ethereum"})
	if prices["bitcoin"] != 65000 || prices["ethereum"] != 3200 {
		t.Errorf("GetPricesForIDs() = %v", prices)
	}

	if got := client.GetPricesForIDs(context.Background(), nil); len(got) != 0 {
		t.Errorf("GetPricesForIDs(nil) = %v, want empty map", got)
	}
}

func TestGetPricesForIDsDegradesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	prices := client.GetPricesForIDs(context.Background(), []string{"bitcoin"})
	if len(prices) != 0 {
		t.Errorf("GetPricesForIDs() on failing upstream = %v, want empty map", prices)
	}
}

func TestSearch(t *testing.T) {
	var hits int64
	server := newUpstream(t, &hits)
	client := NewClient(server.URL)

	results := client.Search(context.Background(), "bit")
	if len(results) != 1 || results[0].ID != "bitcoin" {
		t.Errorf("Search(bit) = %+v, want bitcoin", results)
	}

	if got := client.Search(context.Background(), ""); len(got) != 0 {
		t.Errorf("Search(\"\") = %+v, want empty list", got)
	}
}

func TestGetDetails(t *testing.T) {
	var hits int64
	server := newUpstream(t, &hits)
	client := NewClient(server.URL)

	details := client.GetDetails(context.Background(), "Bitcoin")
	if details == nil {
		t.Fatal("GetDetails(Bitcoin) = nil, want document")
	}

	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(details, &doc); err != nil {
		t.Fatalf("details not valid JSON: %v", err)
	}
	if doc.ID != "bitcoin" {
		t.Errorf("details id = %q, want bitcoin", doc.ID)
	}

	if got := client.GetDetails(context.Background(), "unknown-coin"); got != nil {
		t.Errorf("GetDetails(unknown-coin) = %s, want nil", got)
	}
}

func TestGetHistorySurfacesErrors(t *testing.T) {
	var hits int64
	server := newUpstream(t, &hits)
	client := NewClient(server.URL)

	history, err := client.GetHistory(context.Background(), "bitcoin", "7d")
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) == 0 {
		t.Error("GetHistory() returned empty document")
	}

	if _, err := client.GetHistory(context.Background(), "unknown-coin", ""); err == nil {
		t.Error("GetHistory(unknown-coin) error = nil, want error")
	}
}

func TestGetNews(t *testing.T) {
	var hits int64
	server := newUpstream(t, &hits)
	client := NewClient(server.URL)

	articles := client.GetNews(context.Background(), 1)
	if len(articles) != 1 || articles[0].Title != "Markets up" {
		t.Errorf("GetNews() = %+v", articles)
	}
}
