// Package handlers provides HTTP handlers for risk engine operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/aristath/riskengine/internal/modules/risk"
)

// Handler handles risk HTTP requests
type Handler struct {
	service *risk.Service
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(service *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetVaR handles GET /api/risk/var?confidence=0.95&horizon=1&method=parametric
func (h *Handler) HandleGetVaR(w http.ResponseWriter, r *http.Request) {
	confidence := queryFloat(r, "confidence", 0.95)
	horizon := queryInt(r, "horizon", 1)
	method := r.URL.Query().Get("method")

	positions, value, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}

	var result risk.VaRResult
	switch method {
	case "historical":
		result, err = h.service.VaR.CalculateHistoricalVaR(positions, value, confidence, horizon)
	default:
		result, err = h.service.VaR.CalculateParametricVaR(positions, value, confidence, horizon)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to calculate VaR")
		http.Error(w, "Failed to calculate VaR", http.StatusInternalServerError)
		return
	}

	h.writeData(w, result)
}

// HandleIncrementalVaR handles POST /api/risk/var/incremental with a
// proposed trade in the request body.
func (h *Handler) HandleIncrementalVaR(w http.ResponseWriter, r *http.Request) {
	var trade portfolio.ProposedTrade
	if err := json.NewDecoder(r.Body).Decode(&trade); err != nil {
		http.Error(w, "Invalid trade payload", http.StatusBadRequest)
		return
	}
	if len(trade.Legs) == 0 {
		http.Error(w, "Trade has no legs", http.StatusBadRequest)
		return
	}

	confidence := queryFloat(r, "confidence", 0.95)
	horizon := queryInt(r, "horizon", 1)

	positions, value, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}

	result, err := h.service.VaR.CalculateIncrementalVaR(positions, &trade, value, confidence, horizon)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to calculate incremental VaR")
		http.Error(w, "Failed to calculate incremental VaR", http.StatusInternalServerError)
		return
	}

	h.writeData(w, result)
}

// HandleGetFactors handles GET /api/risk/factors
func (h *Handler) HandleGetFactors(w http.ResponseWriter, r *http.Request) {
	positions, _, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}

	matrix := h.service.BuildMatrix(positions)
	h.writeData(w, map[string]interface{}{
		"factors":     matrix.AggregatedRiskFactors(),
		"total_theta": matrix.TotalTheta(),
		"totals":      matrix.PortfolioTotals(),
		"instruments": risk.InstrumentTable(matrix),
		"factor_rows": risk.FactorTable(matrix),
	})
}

// HandleGetExposures handles GET /api/risk/exposures
func (h *Handler) HandleGetExposures(w http.ResponseWriter, r *http.Request) {
	positions, _, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}
	h.writeData(w, h.service.Extractor.Extract(positions))
}

// HandleGetConcentration handles GET /api/risk/concentration
func (h *Handler) HandleGetConcentration(w http.ResponseWriter, r *http.Request) {
	positions, value, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}
	h.writeData(w, h.service.Checker.Check(positions, value))
}

// HandleGetMargin handles GET /api/risk/margin
func (h *Handler) HandleGetMargin(w http.ResponseWriter, r *http.Request) {
	positions, value, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}
	h.writeData(w, h.service.Margin.Analyze(positions, value))
}

// HandleGetLimits handles GET /api/risk/limits
func (h *Handler) HandleGetLimits(w http.ResponseWriter, r *http.Request) {
	confidence := queryFloat(r, "confidence", 0.95)

	positions, value, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}

	result, err := h.service.CheckLimits(positions, value, confidence)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to check limits")
		http.Error(w, "Failed to check limits", http.StatusInternalServerError)
		return
	}
	h.writeData(w, result)
}

// HandleGetHedges handles GET /api/risk/hedges
func (h *Handler) HandleGetHedges(w http.ResponseWriter, r *http.Request) {
	positions, _, err := h.service.Snapshot()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get positions")
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}

	matrix := h.service.BuildMatrix(positions)
	h.writeData(w, h.service.Hedger.ProposeHedges(matrix))
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
