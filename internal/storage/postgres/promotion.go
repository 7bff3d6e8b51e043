package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

const (
	listPromotionsSQL = `SELECT id, name, kind, value, products, start_date, end_date,
		COALESCE(to_char(start_time_frame, 'HH24:MI'), ''),
		COALESCE(to_char(end_time_frame, 'HH24:MI'), '')
	FROM promotions ORDER BY position`

	upsertPromotionSQL = `INSERT INTO promotions
		(id, name, kind, value, products, start_date, end_date, start_time_frame, end_time_frame)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::time, NULLIF($9, '')::time)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		kind = EXCLUDED.kind,
		value = EXCLUDED.value,
		products = EXCLUDED.products,
		start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date,
		start_time_frame = EXCLUDED.start_time_frame,
		end_time_frame = EXCLUDED.end_time_frame`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
// Promotions are returned in insertion order, which is the order offered to
// the cashier.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// List returns the whole promotion catalog.
func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listPromotionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	promos, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return promos, nil
}

// Upsert inserts or replaces promotions in one batch.
func (r *PromotionRepository) Upsert(ctx context.Context, promos []promotion.Promotion) error {
	if len(promos) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range promos {
		var start, end string
		if p.Window != nil {
			start, end = p.Window.Start.String(), p.Window.End.String()
		}
		products := p.Products
		if products == nil {
			products = []string{}
		}
		batch.Queue(upsertPromotionSQL,
			p.ID, p.Name, string(p.Kind), p.Value, products, p.StartDate, p.EndDate, start, end,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d promotions: %w", len(promos), err)
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p          promotion.Promotion
		kind       string
		start, end string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &kind, &p.Value, &p.Products,
		&p.StartDate, &p.EndDate, &start, &end,
	); err != nil {
		return p, err
	}
	p.Kind = promotion.Kind(kind)

	w, err := promotion.NewWindow(start, end)
	if err != nil {
		return p, fmt.Errorf("promotion %q: %w", p.ID, err)
	}
	p.Window = w
	return p, nil
}
