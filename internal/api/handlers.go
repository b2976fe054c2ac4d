package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/price-ingest/internal/ingest"
	"github.com/trogers1052/price-ingest/internal/models"
)

const (
	defaultPriceLimit = 30
	maxPriceLimit     = 1000
)

// Runner executes one ingestion run
type Runner interface {
	Run(ctx context.Context, req models.RunRequest) models.RunResult
}

// PriceReader reads stored daily prices
type PriceReader interface {
	GetPriceDataBySymbol(ctx context.Context, symbol string, limit int) ([]models.PriceRecord, error)
	GetPriceDataRange(ctx context.Context, symbol string, startDate, endDate time.Time) ([]models.PriceRecord, error)
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	runner            Runner
	prices            PriceReader
	defaultSymbols    []string
	defaultWindowDays int
}

// NewHandler creates a new Handler. Ingest requests that omit symbols or a
// window use the given defaults.
func NewHandler(runner Runner, prices PriceReader, symbols []string, windowDays int) *Handler {
	return &Handler{
		runner:            runner,
		prices:            prices,
		defaultSymbols:    symbols,
		defaultWindowDays: windowDays,
	}
}

// priceResponse is a PriceRecord with its date rendered as YYYY-MM-DD
type priceResponse struct {
	Date   string          `json:"date"`
	Symbol string          `json:"symbol"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

func toPriceResponses(records []models.PriceRecord) []priceResponse {
	out := make([]priceResponse, 0, len(records))
	for _, r := range records {
		out = append(out, priceResponse{
			Date:   r.Date.Format(models.DateLayout),
			Symbol: r.Symbol,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return out
}

// Ingest handles POST /api/v1/ingest. An empty body runs the defaults.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Symbols) == 0 {
		req.Symbols = h.defaultSymbols
	}
	if req.WindowDays == 0 {
		req.WindowDays = h.defaultWindowDays
	}

	result := h.runner.Run(r.Context(), req)

	status := http.StatusOK
	if !result.Succeeded() {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, result)
}

// GetPrices handles GET /api/v1/prices/{symbol}. With from and to it returns
// that inclusive date range; otherwise the most recent limit rows.
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	symbol := ingest.NormalizeSymbol(mux.Vars(r)["symbol"])
	q := r.URL.Query()

	var (
		records []models.PriceRecord
		err     error
	)

	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			http.Error(w, "from and to must be given together", http.StatusBadRequest)
			return
		}
		start, perr := ingest.ParseDate(from)
		if perr != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
		end, perr := ingest.ParseDate(to)
		if perr != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}
		if end.Before(start) {
			http.Error(w, "to is before from", http.StatusBadRequest)
			return
		}
		records, err = h.prices.GetPriceDataRange(r.Context(), symbol, start, end)
	} else {
		limit := defaultPriceLimit
		if v := q.Get("limit"); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxPriceLimit)
		}
		records, err = h.prices.GetPriceDataBySymbol(r.Context(), symbol, limit)
	}

	if err != nil {
		slog.Error("failed to read prices", "symbol", symbol, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, toPriceResponses(records))
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.prices.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
