package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quantfolio/quantfolio/internal/domain"
	"github.com/quantfolio/quantfolio/internal/modules/optimization"
	"github.com/quantfolio/quantfolio/internal/modules/portfolio"
)

const defaultPeriod = "1y"

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps an error to a JSON error response with the right status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		insufficient *domain.InsufficientDataError
		invalid      *domain.InvalidPriceError
		misaligned   *domain.MisalignedSeriesError
		mismatch     *domain.BenchmarkMismatchError
		infeasible   *domain.InfeasibleConstraintsError
		unreachable  *domain.UnreachableTargetError
		noConverge   *domain.OptimizationDidNotConvergeError
		unavailable  *domain.DataUnavailableError
	)
	switch {
	case errors.As(err, &insufficient),
		errors.As(err, &invalid),
		errors.As(err, &misaligned),
		errors.As(err, &mismatch),
		errors.As(err, &infeasible),
		errors.As(err, &unreachable):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &noConverge):
		status = http.StatusConflict
	case errors.As(err, &unavailable):
		status = http.StatusBadGateway
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) queryPeriod(r *http.Request) string {
	if p := r.URL.Query().Get("period"); p != "" {
		return p
	}
	return defaultPeriod
}

func (s *Server) queryFloat(r *http.Request, key string, fallback float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// loadPortfolio resolves the {id} route param to a portfolio, writing a 404
// on failure.
func (s *Server) loadPortfolio(w http.ResponseWriter, r *http.Request) (*portfolio.Portfolio, bool) {
	id := chi.URLParam(r, "id")
	p, err := s.portfolios.Get(id)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "portfolio not found: " + id})
		return nil, false
	}
	return p, true
}

// --- Portfolio CRUD ---

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	all, err := s.portfolios.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string  `json:"name"`
		Cash float64 `json:"cash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	p, err := s.portfolios.Create(req.Name, req.Cash)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}
	if err := s.portfolios.Delete(p.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol string  `json:"symbol"`
		Shares float64 `json:"shares"`
		Price  float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Symbol == "" || req.Shares <= 0 || req.Price <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol, positive shares and positive price are required"})
		return
	}

	if err := s.portfolios.AddStock(p, req.Symbol, req.Shares, req.Price); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol string  `json:"symbol"`
		Shares float64 `json:"shares"`
		Price  float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := s.portfolios.Sell(p, req.Symbol, req.Shares, req.Price); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}

	prices, err := s.engine.LatestPrices(r.Context(), p.Symbols(), s.queryPeriod(r))
	if err != nil {
		s.log.Warn().Err(err).Msg("Falling back to cost basis for allocation")
		prices = map[string]float64{}
	}
	s.writeJSON(w, http.StatusOK, portfolio.Allocation(p, prices))
}

// --- Analysis ---

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}
	if len(p.Holdings) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "portfolio has no holdings"})
		return
	}

	rf := s.queryFloat(r, "risk_free_rate", s.riskFree)
	result, err := s.engine.Analyze(r.Context(), p.Shares(), s.queryPeriod(r), rf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSymbolMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	rf := s.queryFloat(r, "risk_free_rate", s.riskFree)

	result, err := s.engine.AnalyzeSymbol(r.Context(), symbol, s.queryPeriod(r), rf)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSymbolIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	indicators, err := s.engine.SymbolIndicators(r.Context(), symbol, s.queryPeriod(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, indicators)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}

	corr, err := s.engine.Correlation(r.Context(), p.Shares(), s.queryPeriod(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": corr.Symbols(),
		"matrix":  corr.ToRows(),
	})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}

	var req struct {
		Objective    string  `json:"objective"`
		TargetReturn float64 `json:"target_return"`
		MinWeight    float64 `json:"min_weight"`
		MaxWeight    float64 `json:"max_weight"`
		RiskFreeRate float64 `json:"risk_free_rate"`
		Period       string  `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	objective, err := optimization.ParseObjective(req.Objective, req.TargetReturn)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	period := req.Period
	if period == "" {
		period = defaultPeriod
	}
	rf := req.RiskFreeRate
	if rf == 0 {
		rf = s.riskFree
	}
	bounds := optimization.Bounds{Min: req.MinWeight, Max: req.MaxWeight}

	weights, err := s.engine.Optimize(r.Context(), objective, p.Shares(), period, bounds, rf)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"objective": objective.String(),
		"weights":   weights,
	})
}

func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPortfolio(w, r)
	if !ok {
		return
	}

	nPoints := int(s.queryFloat(r, "points", 20))
	bounds := optimization.Bounds{
		Min: s.queryFloat(r, "min_weight", 0),
		Max: s.queryFloat(r, "max_weight", 0),
	}
	rf := s.queryFloat(r, "risk_free_rate", s.riskFree)

	frontier, err := s.engine.Frontier(r.Context(), p.Shares(), s.queryPeriod(r), bounds, nPoints, rf)
	if err != nil {
		s.writeError(w, err)
		return
	}

	points := make([]optimization.FrontierPoint, 0, nPoints)
	for frontier.Next() {
		points = append(points, frontier.Point())
	}
	if err := frontier.Err(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"points": points})
}

// --- Cache ---

func (s *Server) handleFlushCache(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Flush(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
