// Package portfolio holds the holdings data model and its lifecycle:
// buys merge into an average cost, partial sells reduce shares, and a
// holding disappears when its shares reach zero.
package portfolio

import (
	"strconv"
	"time"
)

// Holding is one position in a portfolio. Shares and purchase price are
// positive; the purchase price is the average cost across buys.
type Holding struct {
	Symbol        string    `json:"symbol"`
	Shares        float64   `json:"shares"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
}

// CostBasis returns shares times average purchase price.
func (h Holding) CostBasis() float64 {
	return h.Shares * h.PurchasePrice
}

// Portfolio is a named set of holdings plus a cash balance. Current value
// and weights are derived on demand, never stored.
type Portfolio struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Cash      float64            `json:"cash"`
	Holdings  map[string]Holding `json:"holdings"`
	CreatedAt time.Time          `json:"created_at"`
}

// Symbols returns the held symbols in map order.
func (p *Portfolio) Symbols() []string {
	symbols := make([]string, 0, len(p.Holdings))
	for sym := range p.Holdings {
		symbols = append(symbols, sym)
	}
	return symbols
}

// Shares returns the symbol→shares view consumed by the analysis engine.
func (p *Portfolio) Shares() map[string]float64 {
	shares := make(map[string]float64, len(p.Holdings))
	for sym, h := range p.Holdings {
		shares[sym] = h.Shares
	}
	return shares
}

// TotalInvested returns the summed cost basis of all holdings.
func (p *Portfolio) TotalInvested() float64 {
	total := 0.0
	for _, h := range p.Holdings {
		total += h.CostBasis()
	}
	return total
}

// ToMap flattens the portfolio to plain string key-values for the
// persistence collaborator: scalar fields plus one shares/price pair per
// symbol.
func (p *Portfolio) ToMap() map[string]string {
	out := map[string]string{
		"id":         p.ID,
		"name":       p.Name,
		"cash":       strconv.FormatFloat(p.Cash, 'g', -1, 64),
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339),
	}
	for sym, h := range p.Holdings {
		out["holding."+sym+".shares"] = strconv.FormatFloat(h.Shares, 'g', -1, 64)
		out["holding."+sym+".purchase_price"] = strconv.FormatFloat(h.PurchasePrice, 'g', -1, 64)
	}
	return out
}
