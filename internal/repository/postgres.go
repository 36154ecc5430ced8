package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricescan/internal/models"
)

// Repository is the durable price store backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(dbURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse db url: %w", err)
	}

	if maxConnStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxConnStr != "" {
		if maxConn, err := strconv.Atoi(maxConnStr); err == nil {
			config.MaxConns = int32(maxConn)
		}
	}
	if minConnStr := os.Getenv("DB_MAX_IDLE_CONNS"); minConnStr != "" {
		if minConn, err := strconv.Atoi(minConnStr); err == nil {
			config.MinConns = int32(minConn)
		}
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &Repository{db: pool}, nil
}

// Migrate executes the schema script at the given path.
func (r *Repository) Migrate(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	_, err = r.db.Exec(context.Background(), string(content))
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() {
	r.db.Close()
}

// GetPrice returns the record for an exact (token, network, timestamp) key,
// or nil when none exists.
func (r *Repository) GetPrice(ctx context.Context, token, network string, ts int64) (*models.PriceRecord, error) {
	rec := models.PriceRecord{Token: token, Network: network, Timestamp: ts}
	err := r.db.QueryRow(ctx,
		`SELECT price FROM prices WHERE token = $1 AND network = $2 AND timestamp = $3`,
		token, network, ts).Scan(&rec.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// NearestBefore returns the latest record strictly before ts, or nil.
func (r *Repository) NearestBefore(ctx context.Context, token, network string, ts int64) (*models.PriceRecord, error) {
	return r.nearest(ctx, token, network, ts, `
		SELECT timestamp, price FROM prices
		WHERE token = $1 AND network = $2 AND timestamp < $3
		ORDER BY timestamp DESC LIMIT 1`)
}

// NearestAfter returns the earliest record strictly after ts, or nil.
func (r *Repository) NearestAfter(ctx context.Context, token, network string, ts int64) (*models.PriceRecord, error) {
	return r.nearest(ctx, token, network, ts, `
		SELECT timestamp, price FROM prices
		WHERE token = $1 AND network = $2 AND timestamp > $3
		ORDER BY timestamp ASC LIMIT 1`)
}

func (r *Repository) nearest(ctx context.Context, token, network string, ts int64, query string) (*models.PriceRecord, error) {
	rec := models.PriceRecord{Token: token, Network: network}
	err := r.db.QueryRow(ctx, query, token, network, ts).Scan(&rec.Timestamp, &rec.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertPrice inserts or overwrites the record for its key. Last writer wins.
func (r *Repository) UpsertPrice(ctx context.Context, rec models.PriceRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO prices (token, network, timestamp, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token, network, timestamp) DO UPDATE SET
			price = EXCLUDED.price,
			updated_at = NOW()`,
		rec.Token, rec.Network, rec.Timestamp, rec.Price)
	return err
}
