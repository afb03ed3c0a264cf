package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/quantfolio/quantfolio/internal/database"
)

// Repository persists portfolios and their holdings in SQLite.
type Repository struct {
	db *database.DB
}

// NewRepository creates the repository and its schema.
func NewRepository(db *database.DB) (*Repository, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS portfolios (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			cash       REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS holdings (
			portfolio_id   TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
			symbol         TEXT NOT NULL,
			shares         REAL NOT NULL,
			purchase_price REAL NOT NULL,
			purchase_date  INTEGER NOT NULL,
			PRIMARY KEY (portfolio_id, symbol)
		)`
	if _, err := db.Conn().Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create portfolio schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Save upserts a portfolio and replaces its holdings in one transaction.
func (r *Repository) Save(p *Portfolio) error {
	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO portfolios (id, name, cash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, cash = excluded.cash`,
		p.ID, p.Name, p.Cash, p.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save portfolio %s: %w", p.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM holdings WHERE portfolio_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to clear holdings for %s: %w", p.ID, err)
	}

	for _, h := range p.Holdings {
		_, err := tx.Exec(`
			INSERT INTO holdings (portfolio_id, symbol, shares, purchase_price, purchase_date)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, h.Symbol, h.Shares, h.PurchasePrice, h.PurchaseDate.Unix())
		if err != nil {
			return fmt.Errorf("failed to save holding %s: %w", h.Symbol, err)
		}
	}

	return tx.Commit()
}

// Get loads one portfolio with its holdings.
func (r *Repository) Get(id string) (*Portfolio, error) {
	p := &Portfolio{Holdings: make(map[string]Holding)}
	var createdAt int64
	err := r.db.Conn().QueryRow(`
		SELECT id, name, cash, created_at FROM portfolios WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Cash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("portfolio %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %s: %w", id, err)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()

	if err := r.loadHoldings(p); err != nil {
		return nil, err
	}
	return p, nil
}

// List loads every portfolio with holdings.
func (r *Repository) List() ([]*Portfolio, error) {
	rows, err := r.db.Conn().Query(`SELECT id, name, cash, created_at FROM portfolios ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var out []*Portfolio
	for rows.Next() {
		p := &Portfolio{Holdings: make(map[string]Holding)}
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Cash, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range out {
		if err := r.loadHoldings(p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete removes a portfolio and (via cascade) its holdings.
func (r *Repository) Delete(id string) error {
	if _, err := r.db.Conn().Exec(`DELETE FROM portfolios WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
	}
	return nil
}

func (r *Repository) loadHoldings(p *Portfolio) error {
	rows, err := r.db.Conn().Query(`
		SELECT symbol, shares, purchase_price, purchase_date
		FROM holdings WHERE portfolio_id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load holdings for %s: %w", p.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var h Holding
		var purchaseDate int64
		if err := rows.Scan(&h.Symbol, &h.Shares, &h.PurchasePrice, &purchaseDate); err != nil {
			return fmt.Errorf("failed to scan holding: %w", err)
		}
		h.PurchaseDate = time.Unix(purchaseDate, 0).UTC()
		p.Holdings[h.Symbol] = h
	}
	return rows.Err()
}
