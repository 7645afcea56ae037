package promo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// PostgresValidator validates codes against the promo_codes table.
type PostgresValidator struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresValidator(cred *Credentials) (*PostgresValidator, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	return &PostgresValidator{db: db, now: time.Now}, nil
}

func (v *PostgresValidator) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(v.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

func (v *PostgresValidator) Validate(ctx context.Context, code, storeID string) (domain.DiscountDescriptor, error) {
	query := `
		SELECT discount_type, discount_value, is_active, starts_at, expires_at, max_redemptions, redemptions
		FROM promo_codes
		WHERE code = $1 AND store_id = $2
	`

	var (
		discountType   string
		value          decimal.Decimal
		active         bool
		startsAt       sql.NullTime
		expiresAt      sql.NullTime
		maxRedemptions sql.NullInt64
		redemptions    int64
	)
	err := v.db.QueryRowContext(ctx, query, domain.NormalizeCode(code), storeID).Scan(
		&discountType,
		&value,
		&active,
		&startsAt,
		&expiresAt,
		&maxRedemptions,
		&redemptions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DiscountDescriptor{}, ErrCodeNotFound
	}
	if err != nil {
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	now := v.now()
	switch {
	case !active:
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: disabled", ErrCodeInactive)
	case startsAt.Valid && now.Before(startsAt.Time):
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: not started", ErrCodeInactive)
	case expiresAt.Valid && !now.Before(expiresAt.Time):
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: expired", ErrCodeInactive)
	case maxRedemptions.Valid && redemptions >= maxRedemptions.Int64:
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: redemption limit reached", ErrCodeInactive)
	}

	d := domain.DiscountDescriptor{Type: domain.DiscountType(discountType), Value: value}
	if !d.Type.Valid() {
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: unknown discount type %q", ErrValidationFailed, discountType)
	}
	return d, nil
}

func (v *PostgresValidator) Close() error {
	return v.db.Close()
}
