// Package memory holds in-process repositories loaded from a catalog file.
// They back the offline CLI, tests and the server when no database is
// configured.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/pos-checkout/internal/catalogfile"
	"github.com/xenking/pos-checkout/internal/domain/auth"
	"github.com/xenking/pos-checkout/internal/domain/business"
	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

var (
	_ product.Repository   = (*ProductRepository)(nil)
	_ promotion.Repository = (*PromotionRepository)(nil)
	_ business.Repository  = (*BusinessRepository)(nil)
	_ checkout.Repository  = (*TransactionRepository)(nil)
	_ auth.Repository      = (*APIKeyRepository)(nil)
)

// ProductRepository serves a fixed product list.
type ProductRepository struct {
	products []product.Product
}

// NewProductRepository copies products into a repository.
func NewProductRepository(products []product.Product) *ProductRepository {
	return &ProductRepository{products: slices.Clone(products)}
}

func (r *ProductRepository) List(context.Context) ([]product.Product, error) {
	return slices.Clone(r.products), nil
}

func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	for _, p := range r.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

// PromotionRepository serves a fixed promotion list in source order.
type PromotionRepository struct {
	promos []promotion.Promotion
}

// NewPromotionRepository copies promos into a repository.
func NewPromotionRepository(promos []promotion.Promotion) *PromotionRepository {
	return &PromotionRepository{promos: slices.Clone(promos)}
}

func (r *PromotionRepository) List(context.Context) ([]promotion.Promotion, error) {
	return slices.Clone(r.promos), nil
}

// BusinessRepository serves a fixed directory.
type BusinessRepository struct {
	branches []business.Branch
	brands   []business.Brand
	links    []business.BranchBrand
}

// NewBusinessRepository builds a directory from a catalog.
func NewBusinessRepository(c *catalogfile.Catalog) *BusinessRepository {
	return &BusinessRepository{
		branches: slices.Clone(c.Branches),
		brands:   slices.Clone(c.Brands),
		links:    slices.Clone(c.BranchBrands),
	}
}

func (r *BusinessRepository) ListBranches(context.Context) ([]business.Branch, error) {
	return slices.Clone(r.branches), nil
}

func (r *BusinessRepository) ListBrands(context.Context) ([]business.Brand, error) {
	return slices.Clone(r.brands), nil
}

func (r *BusinessRepository) ListBranchBrands(context.Context) ([]business.BranchBrand, error) {
	return slices.Clone(r.links), nil
}

// TransactionRepository keeps committed transactions in memory.
type TransactionRepository struct {
	mu  sync.RWMutex
	txs []checkout.Transaction
}

// NewTransactionRepository returns an empty history.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

func (r *TransactionRepository) Create(_ context.Context, tx *checkout.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.txs {
		if existing.ID == tx.ID {
			return &DuplicateError{ID: tx.ID}
		}
	}
	cp := *tx
	cp.Items = slices.Clone(tx.Items)
	r.txs = append(r.txs, cp)
	return nil
}

func (r *TransactionRepository) List(_ context.Context, q checkout.HistoryQuery) (checkout.HistoryPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return checkout.FilterHistory(r.txs, q), nil
}

// DuplicateError reports a transaction id that was already stored.
type DuplicateError struct {
	ID string
}

func (e *DuplicateError) Error() string {
	return "transaction " + e.ID + " already exists"
}

// APIKeyRepository holds terminal keys by hash.
type APIKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]auth.APIKeyInfo
}

// NewAPIKeyRepository returns a repository holding keys.
func NewAPIKeyRepository(keys ...auth.APIKeyInfo) *APIKeyRepository {
	r := &APIKeyRepository{keys: make(map[string]auth.APIKeyInfo, len(keys))}
	for _, k := range keys {
		r.keys[k.KeyHash] = k
	}
	return r
}

func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return &k, nil
}

// Upsert stores or replaces a key.
func (r *APIKeyRepository) Upsert(_ context.Context, info auth.APIKeyInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[info.KeyHash] = info
	return nil
}

// Store bundles the repositories for one catalog.
type Store struct {
	Products     *ProductRepository
	Promotions   *PromotionRepository
	Business     *BusinessRepository
	Transactions *TransactionRepository
	APIKeys      *APIKeyRepository
}

// NewStore loads c into fresh repositories with an empty history.
func NewStore(c *catalogfile.Catalog) *Store {
	return &Store{
		Products:     NewProductRepository(c.Products),
		Promotions:   NewPromotionRepository(c.Promotions),
		Business:     NewBusinessRepository(c),
		Transactions: NewTransactionRepository(),
		APIKeys:      NewAPIKeyRepository(),
	}
}
