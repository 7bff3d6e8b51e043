package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pos-checkout/internal/domain/business"
)

const (
	listBranchesSQL     = `SELECT id, name, address FROM branches ORDER BY name`
	listBrandsSQL       = `SELECT id, name FROM brands ORDER BY name`
	listBranchBrandsSQL = `SELECT id, branch_id, brand_id, name FROM branch_brands ORDER BY name`

	upsertBranchSQL = `INSERT INTO branches (id, name, address) VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address`
	upsertBrandSQL = `INSERT INTO brands (id, name) VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	upsertBranchBrandSQL = `INSERT INTO branch_brands (id, branch_id, brand_id, name) VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET branch_id = EXCLUDED.branch_id, brand_id = EXCLUDED.brand_id, name = EXCLUDED.name`
)

var _ business.Repository = (*BusinessRepository)(nil)

// BusinessRepository serves the branch and brand directory.
type BusinessRepository struct {
	pool *pgxpool.Pool
}

// NewBusinessRepository returns a BusinessRepository that uses the given pool.
func NewBusinessRepository(pool *pgxpool.Pool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

func (r *BusinessRepository) ListBranches(ctx context.Context) ([]business.Branch, error) {
	rows, err := r.pool.Query(ctx, listBranchesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (business.Branch, error) {
		var b business.Branch
		err := row.Scan(&b.ID, &b.Name, &b.Address)
		return b, err
	})
}

func (r *BusinessRepository) ListBrands(ctx context.Context) ([]business.Brand, error) {
	rows, err := r.pool.Query(ctx, listBrandsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing brands: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (business.Brand, error) {
		var b business.Brand
		err := row.Scan(&b.ID, &b.Name)
		return b, err
	})
}

func (r *BusinessRepository) ListBranchBrands(ctx context.Context) ([]business.BranchBrand, error) {
	rows, err := r.pool.Query(ctx, listBranchBrandsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing branch brands: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (business.BranchBrand, error) {
		var b business.BranchBrand
		err := row.Scan(&b.ID, &b.BranchID, &b.BrandID, &b.Name)
		return b, err
	})
}

// Upsert writes the whole directory in a single transaction, parents first.
func (r *BusinessRepository) Upsert(
	ctx context.Context,
	branches []business.Branch,
	brands []business.Brand,
	links []business.BranchBrand,
) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range branches {
			batch.Queue(upsertBranchSQL, b.ID, b.Name, b.Address)
		}
		for _, b := range brands {
			batch.Queue(upsertBrandSQL, b.ID, b.Name)
		}
		for _, l := range links {
			batch.Queue(upsertBranchBrandSQL, l.ID, l.BranchID, l.BrandID, l.Name)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting directory: %w", err)
		}
		return nil
	})
}
