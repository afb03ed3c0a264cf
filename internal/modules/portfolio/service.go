package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service applies the holdings lifecycle to a portfolio and persists the
// result. The portfolio struct itself stays plain data; every mutation
// goes through here.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a portfolio service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "portfolio").Logger(),
	}
}

// Create makes a new empty portfolio with the given starting cash.
func (s *Service) Create(name string, cash float64) (*Portfolio, error) {
	p := &Portfolio{
		ID:        uuid.NewString(),
		Name:      name,
		Cash:      cash,
		Holdings:  make(map[string]Holding),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Save(p); err != nil {
		return nil, err
	}
	s.log.Info().Str("portfolio", p.ID).Str("name", name).Msg("Created portfolio")
	return p, nil
}

// Get loads a portfolio by ID.
func (s *Service) Get(id string) (*Portfolio, error) {
	return s.repo.Get(id)
}

// List returns all stored portfolios.
func (s *Service) List() ([]*Portfolio, error) {
	return s.repo.List()
}

// AddStock buys shares of a symbol. An existing holding merges the buy
// into its average cost; cash is reduced when it covers the cost.
func (s *Service) AddStock(p *Portfolio, symbol string, shares, price float64) error {
	if shares <= 0 || price <= 0 {
		return fmt.Errorf("shares and price must be positive (got %.4f @ %.4f)", shares, price)
	}
	symbol = strings.ToUpper(symbol)

	h, exists := p.Holdings[symbol]
	if exists {
		totalCost := h.CostBasis() + shares*price
		h.Shares += shares
		h.PurchasePrice = totalCost / h.Shares
	} else {
		h = Holding{
			Symbol:        symbol,
			Shares:        shares,
			PurchasePrice: price,
			PurchaseDate:  time.Now().UTC(),
		}
	}
	p.Holdings[symbol] = h

	cost := shares * price
	if p.Cash >= cost {
		p.Cash -= cost
	}

	return s.repo.Save(p)
}

// Sell reduces a holding by the given shares at the given price, crediting
// cash. Selling the full position removes the holding.
func (s *Service) Sell(p *Portfolio, symbol string, shares, price float64) error {
	symbol = strings.ToUpper(symbol)
	h, exists := p.Holdings[symbol]
	if !exists {
		return fmt.Errorf("symbol %s not held", symbol)
	}
	if shares <= 0 || shares > h.Shares {
		return fmt.Errorf("cannot sell %.4f shares of %s: %.4f held", shares, symbol, h.Shares)
	}

	h.Shares -= shares
	p.Cash += shares * price
	if h.Shares == 0 {
		delete(p.Holdings, symbol)
	} else {
		p.Holdings[symbol] = h
	}

	return s.repo.Save(p)
}

// Remove drops a holding without touching cash.
func (s *Service) Remove(p *Portfolio, symbol string) error {
	delete(p.Holdings, strings.ToUpper(symbol))
	return s.repo.Save(p)
}

// Delete removes a portfolio and its holdings.
func (s *Service) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.log.Info().Str("portfolio_id", id).Msg("Portfolio deleted")
	return nil
}

// AllocationRow is one line of a current-value allocation.
type AllocationRow struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// Allocation computes current-value weights given the latest price per
// symbol. Cash appears as a pseudo-symbol when positive. Symbols with no
// price contribute their cost basis, so a partial price map still sums
// to 1.
func Allocation(p *Portfolio, prices map[string]float64) []AllocationRow {
	type valued struct {
		symbol string
		value  float64
	}

	var rows []valued
	total := p.Cash
	for sym, h := range p.Holdings {
		v := h.CostBasis()
		if price, ok := prices[sym]; ok && price > 0 {
			v = h.Shares * price
		}
		rows = append(rows, valued{symbol: sym, value: v})
		total += v
	}
	if p.Cash > 0 {
		rows = append(rows, valued{symbol: "CASH", value: p.Cash})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].value > rows[j].value })

	out := make([]AllocationRow, len(rows))
	for i, r := range rows {
		weight := 0.0
		if total > 0 {
			weight = r.value / total
		}
		out[i] = AllocationRow{Symbol: r.symbol, Value: r.value, Weight: weight}
	}
	return out
}
