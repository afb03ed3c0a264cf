package portfolio

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/quantfolio/internal/database"
)

func testService(t *testing.T) *Service {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "portfolio.db"),
		Profile: database.ProfileStandard,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db)
	require.NoError(t, err)
	return NewService(repo, zerolog.Nop())
}

func TestCreateAndGet(t *testing.T) {
	s := testService(t)

	created, err := s.Create("retirement", 10000)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	loaded, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "retirement", loaded.Name)
	assert.Equal(t, 10000.0, loaded.Cash)
	assert.Empty(t, loaded.Holdings)
}

func TestGet_Unknown(t *testing.T) {
	s := testService(t)

	_, err := s.Get("nope")
	require.Error(t, err)
}

func TestAddStock_MergesIntoAverageCost(t *testing.T) {
	s := testService(t)

	p, err := s.Create("growth", 100000)
	require.NoError(t, err)

	require.NoError(t, s.AddStock(p, "aapl", 10, 100))
	require.NoError(t, s.AddStock(p, "AAPL", 10, 200))

	h := p.Holdings["AAPL"]
	assert.Equal(t, 20.0, h.Shares)
	assert.InDelta(t, 150.0, h.PurchasePrice, 1e-9, "average cost across both buys")
	assert.Equal(t, 100000.0-10*100-10*200, p.Cash)

	// The merge persists.
	loaded, err := s.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, loaded.Holdings["AAPL"].Shares)
}

func TestAddStock_CashNotDrivenNegative(t *testing.T) {
	s := testService(t)

	p, err := s.Create("small", 500)
	require.NoError(t, err)

	// Cost exceeds cash; the buy records but cash stays untouched.
	require.NoError(t, s.AddStock(p, "AAPL", 10, 100))
	assert.Equal(t, 500.0, p.Cash)
	assert.Equal(t, 10.0, p.Holdings["AAPL"].Shares)
}

func TestAddStock_RejectsNonPositive(t *testing.T) {
	s := testService(t)

	p, err := s.Create("x", 0)
	require.NoError(t, err)

	require.Error(t, s.AddStock(p, "AAPL", 0, 100))
	require.Error(t, s.AddStock(p, "AAPL", 10, -1))
}

func TestSell_PartialAndFull(t *testing.T) {
	s := testService(t)

	p, err := s.Create("trading", 0)
	require.NoError(t, err)
	require.NoError(t, s.AddStock(p, "MSFT", 10, 300))

	require.NoError(t, s.Sell(p, "MSFT", 4, 350))
	assert.Equal(t, 6.0, p.Holdings["MSFT"].Shares)
	assert.Equal(t, 4*350.0, p.Cash)

	// Selling the rest removes the holding.
	require.NoError(t, s.Sell(p, "MSFT", 6, 350))
	_, held := p.Holdings["MSFT"]
	assert.False(t, held)

	loaded, err := s.Get(p.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Holdings)
}

func TestSell_Invalid(t *testing.T) {
	s := testService(t)

	p, err := s.Create("trading", 0)
	require.NoError(t, err)
	require.NoError(t, s.AddStock(p, "MSFT", 10, 300))

	require.Error(t, s.Sell(p, "GOOG", 1, 100), "symbol not held")
	require.Error(t, s.Sell(p, "MSFT", 11, 300), "more shares than held")
	require.Error(t, s.Sell(p, "MSFT", 0, 300), "zero shares")
}

func TestDelete_RemovesPortfolioAndHoldings(t *testing.T) {
	s := testService(t)

	p, err := s.Create("doomed", 100)
	require.NoError(t, err)
	require.NoError(t, s.AddStock(p, "AAPL", 1, 50))

	require.NoError(t, s.Delete(p.ID))

	_, err = s.Get(p.ID)
	require.Error(t, err)

	all, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestList_ReturnsAll(t *testing.T) {
	s := testService(t)

	_, err := s.Create("one", 0)
	require.NoError(t, err)
	_, err = s.Create("two", 0)
	require.NoError(t, err)

	all, err := s.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAllocation_WithCashAndPrices(t *testing.T) {
	s := testService(t)

	p, err := s.Create("balanced", 0)
	require.NoError(t, err)
	require.NoError(t, s.AddStock(p, "AAPL", 10, 100))
	p.Cash = 1000

	rows := Allocation(p, map[string]float64{"AAPL": 300})
	require.Len(t, rows, 2)

	// 10 shares at 300 = 3000 beats 1000 cash.
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, 3000.0, rows[0].Value)
	assert.Equal(t, "CASH", rows[1].Symbol)

	totalWeight := 0.0
	for _, r := range rows {
		totalWeight += r.Weight
	}
	assert.InDelta(t, 1.0, totalWeight, 1e-9)
}

func TestAllocation_FallsBackToCostBasis(t *testing.T) {
	s := testService(t)

	p, err := s.Create("nopriced", 0)
	require.NoError(t, err)
	require.NoError(t, s.AddStock(p, "AAPL", 10, 100))

	rows := Allocation(p, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, 1000.0, rows[0].Value)
	assert.Equal(t, 1.0, rows[0].Weight)
}

func TestToMap_FlattensHoldings(t *testing.T) {
	p := &Portfolio{
		ID:   "p1",
		Name: "flat",
		Cash: 12.5,
		Holdings: map[string]Holding{
			"AAPL": {Symbol: "AAPL", Shares: 3, PurchasePrice: 150},
		},
	}

	m := p.ToMap()
	assert.Equal(t, "p1", m["id"])
	assert.Equal(t, "12.5", m["cash"])
	assert.Equal(t, "3", m["holding.AAPL.shares"])
	assert.Equal(t, "150", m["holding.AAPL.purchase_price"])
}
