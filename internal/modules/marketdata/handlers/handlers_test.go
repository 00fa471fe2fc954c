package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"

	_ "modernc.org/sqlite"
)

type testEnv struct {
	router    chi.Router
	prices    *marketdata.PriceRepository
	dividends *marketdata.DividendRepository
	quotes    *marketdata.QuoteRepository
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE price_history (
			ticker TEXT NOT NULL,
			date TEXT NOT NULL,
			close_price REAL NOT NULL,
			PRIMARY KEY (ticker, date)
		);
		CREATE TABLE dividend_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL,
			ex_date TEXT NOT NULL,
			amount REAL NOT NULL,
			UNIQUE (ticker, ex_date)
		);
		CREATE TABLE live_quotes (
			ticker TEXT PRIMARY KEY,
			price REAL NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	env := &testEnv{
		prices:    marketdata.NewPriceRepository(db, log),
		dividends: marketdata.NewDividendRepository(db, log),
		quotes:    marketdata.NewQuoteRepository(db, log),
	}

	handler := NewHandler(env.prices, env.dividends, env.quotes, log)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	env.router = r
	return env
}

func TestHandleUpsertPrices(t *testing.T) {
	env := newTestEnv(t)

	body := `[
		{"ticker": "AAPL", "date": "2025-01-02", "close": 150},
		{"ticker": "AAPL", "date": "2025-01-03", "close": 152},
		{"ticker": "MSFT", "date": "2025-01-02", "close": 300}
	]`
	req := httptest.NewRequest("POST", "/market/prices", strings.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, "Response: %s", w.Body.String())

	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp["written"])

	price, ok, err := env.prices.ExactDate("AAPL", "2025-01-03")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 152.0, price)
}

func TestHandleUpsertPrices_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]string{
		"bad body":       `{"ticker": "AAPL"}`,
		"empty batch":    `[]`,
		"zero close":     `[{"ticker": "AAPL", "date": "2025-01-02", "close": 0}]`,
		"missing ticker": `[{"date": "2025-01-02", "close": 150}]`,
		"bad date":       `[{"ticker": "AAPL", "date": "01/02/2025", "close": 150}]`,
	}
	for name, body := range cases {
		req := httptest.NewRequest("POST", "/market/prices", strings.NewReader(body))
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "case %q: %s", name, w.Body.String())
	}
}

func TestHandleLatestPrice(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.prices.Upsert("AAPL", "2025-01-02", 150))
	require.NoError(t, env.prices.Upsert("AAPL", "2025-01-03", 152))

	req := httptest.NewRequest("GET", "/market/prices/AAPL/latest", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "Response: %s", w.Body.String())

	var point domain.PricePoint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &point))
	assert.Equal(t, "AAPL", point.Ticker)
	assert.Equal(t, "2025-01-03", point.Date)
	assert.Equal(t, 152.0, point.Close)
}

func TestHandleLatestPrice_Unknown(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/market/prices/ZZZ/latest", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleUpsertDividends(t *testing.T) {
	env := newTestEnv(t)

	body := `[
		{"ticker": "KO", "ex_date": "2025-03-14", "amount": 0.485},
		{"ticker": "JNJ", "ex_date": "2025-02-18", "amount": 1.24}
	]`
	req := httptest.NewRequest("POST", "/market/dividends", strings.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, "Response: %s", w.Body.String())

	events, err := env.dividends.ListForTickers([]string{"KO", "JNJ"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2025-02-18", events[0].ExDate)
	assert.NotZero(t, events[0].ID)
}

func TestHandleUpsertDividends_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]string{
		"empty batch": `[]`,
		"zero amount": `[{"ticker": "KO", "ex_date": "2025-03-14", "amount": 0}]`,
		"bad ex_date": `[{"ticker": "KO", "ex_date": "March 14", "amount": 0.485}]`,
	}
	for name, body := range cases {
		req := httptest.NewRequest("POST", "/market/dividends", strings.NewReader(body))
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "case %q: %s", name, w.Body.String())
	}
}

func TestHandleUpsertQuotes(t *testing.T) {
	env := newTestEnv(t)

	body := `[{"ticker": "AAPL", "price": 151.25}, {"ticker": "MSFT", "price": 305.1}]`
	req := httptest.NewRequest("POST", "/market/quotes", strings.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, "Response: %s", w.Body.String())

	price, ok, err := env.quotes.Get("AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 151.25, price)
}

func TestHandleUpsertQuotes_Validation(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/market/quotes", strings.NewReader(`[{"ticker": "", "price": 10}]`))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
