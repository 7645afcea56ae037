package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteRepository is a local replica of the store catalogs.
type SQLiteRepository struct {
	db              *sql.DB
	defaultCurrency string
}

func NewSQLiteRepository(dbPath, defaultCurrency string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases exist per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteRepository{db: db, defaultCurrency: defaultCurrency}, nil
}

func (r *SQLiteRepository) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Product(ctx context.Context, storeID, productID string) (domain.ProductSnapshot, bool, error) {
	query := `
		SELECT id, name, price, stock, is_active, currency
		FROM products
		WHERE store_id = ? AND id = ?
	`

	var (
		id, name                         string
		price, stock, isActive, currency any
	)
	err := r.db.QueryRowContext(ctx, query, storeID, productID).
		Scan(&id, &name, &price, &stock, &isActive, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProductSnapshot{}, false, ErrProductNotFound
	}
	if err != nil {
		return domain.ProductSnapshot{}, false, fmt.Errorf("failed to query product: %w", err)
	}

	raw := map[string]any{
		"id":       id,
		"name":     name,
		"price":    price,
		"stock":    stock,
		"currency": currency,
	}
	if isActive != nil {
		raw["isActive"] = isActive
	}

	rec, err := Normalize(raw, r.defaultCurrency)
	if err != nil {
		return domain.ProductSnapshot{}, false, err
	}
	return rec.Snapshot, rec.IsActive, nil
}

// UpsertProduct writes one catalog record for storeID.
func (r *SQLiteRepository) UpsertProduct(ctx context.Context, storeID string, rec Record) error {
	query := `
		INSERT INTO products (id, store_id, name, price, stock, is_active, currency, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (store_id, id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			stock = excluded.stock,
			is_active = excluded.is_active,
			currency = excluded.currency,
			updated_at = CURRENT_TIMESTAMP
	`

	s := rec.Snapshot
	_, err := r.db.ExecContext(ctx, query, s.ID, storeID, s.Name, s.Price.String(), s.Stock, rec.IsActive, s.Currency)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
