package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardpricer/internal/listing"
	"cardpricer/internal/model"
)

// PostgresRepository implements listing.Repository over the listings table
// written by the ingestion pipeline. The engine only reads.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository wraps an existing connection pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// QueryListings selects matching listings ordered by effective date
// descending. COALESCE(sold_at, observed_at) implements the effective-date
// fallback in SQL so ordering and window filtering agree with the engine.
func (r *PostgresRepository) QueryListings(ctx context.Context, q listing.Query) ([]model.Listing, error) {
	sql := `
		SELECT id, card_id, treatment, product_subtype, price, quantity,
		       kind, platform, listed_at, sold_at, observed_at, is_bulk_lot
		FROM listings
		WHERE card_id = $1
		  AND kind = $2
		  AND COALESCE(sold_at, observed_at) >= $3`
	args := []any{q.CardID, string(q.Kind), q.Since}

	if q.Variant != "" {
		args = append(args, q.Variant)
		sql += fmt.Sprintf(`
		  AND COALESCE(NULLIF(product_subtype, ''), treatment) = $%d`, len(args))
	}
	if len(q.Platforms) > 0 {
		platforms := make([]string, len(q.Platforms))
		for i, p := range q.Platforms {
			platforms[i] = string(p)
		}
		args = append(args, platforms)
		sql += fmt.Sprintf(`
		  AND platform = ANY($%d)`, len(args))
	}
	if q.Until != nil {
		args = append(args, *q.Until)
		sql += fmt.Sprintf(`
		  AND COALESCE(sold_at, observed_at) <= $%d`, len(args))
	}
	sql += `
		ORDER BY COALESCE(sold_at, observed_at) DESC`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	defer rows.Close()

	listings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Listing, error) {
		var l model.Listing
		err := row.Scan(&l.ID, &l.CardID, &l.Treatment, &l.ProductSubtype, &l.Price,
			&l.Quantity, &l.Kind, &l.Platform, &l.ListedAt, &l.SoldAt, &l.ObservedAt, &l.IsBulkLot)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}

	return listings, nil
}
