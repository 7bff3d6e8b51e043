package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-checkout/internal/domain/checkout"
)

const (
	insertTransactionSQL = `INSERT INTO transactions
		(id, subtotal, discount, tax, total, promotion_id, bogo_product_id,
		 method, reference, cash_tendered, change_due, cashier, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	// historyFilterSQL is shared by the summary and page queries.
	// $1 method, $2 day start, $3 day end, $4 search pattern.
	historyFilterSQL = `
	WHERE ($1::text = '' OR t.method = $1)
	  AND ($2::timestamptz IS NULL OR (t.created_at >= $2 AND t.created_at < $3))
	  AND ($4::text = '' OR t.id ILIKE $4 OR EXISTS (
		SELECT 1 FROM transaction_items i
		WHERE i.transaction_id = t.id AND i.name ILIKE $4))`

	historySummarySQL = `SELECT count(*), COALESCE(sum(t.total), 0) FROM transactions t` + historyFilterSQL

	historyPageSQL = `SELECT t.id, t.subtotal, t.discount, t.tax, t.total, t.promotion_id, t.bogo_product_id,
		t.method, t.reference, t.cash_tendered, t.change_due, t.cashier, t.created_at
	FROM transactions t` + historyFilterSQL + `
	ORDER BY t.created_at DESC, t.id
	LIMIT $5 OFFSET $6`

	historyItemsSQL = `SELECT transaction_id, product_id, name, price, quantity
	FROM transaction_items WHERE transaction_id = ANY($1)
	ORDER BY transaction_id, position`
)

var _ checkout.Repository = (*TransactionRepository)(nil)

// TransactionRepository stores committed transactions and their items.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository returns a TransactionRepository that uses the
// given pool.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create writes the transaction header and its items atomically.
func (r *TransactionRepository) Create(ctx context.Context, t *checkout.Transaction) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertTransactionSQL,
			t.ID, t.Subtotal, t.Discount, t.Tax, t.Total, t.PromotionID, t.BOGOProductID,
			string(t.Method), t.Reference, t.CashTendered, t.Change, t.Cashier, t.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting header: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"transaction_items"},
			[]string{"transaction_id", "position", "product_id", "name", "price", "quantity"},
			pgx.CopyFromSlice(len(t.Items), func(i int) ([]any, error) {
				it := t.Items[i]
				return []any{t.ID, i, it.ProductID, it.Name, it.Price, it.Quantity}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying items: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating transaction %q: %w", t.ID, err)
	}
	return nil
}

// List returns one page of history matching q, most recent first.
func (r *TransactionRepository) List(ctx context.Context, q checkout.HistoryQuery) (checkout.HistoryPage, error) {
	q = q.Normalize()
	args := historyArgs(q)

	page := checkout.HistoryPage{
		Transactions: []checkout.Transaction{},
		Page:         q.Page,
		PageSize:     q.PageSize,
	}
	if err := r.pool.QueryRow(ctx, historySummarySQL, args...).Scan(&page.TotalCount, &page.Revenue); err != nil {
		return checkout.HistoryPage{}, fmt.Errorf("summarizing history: %w", err)
	}
	if page.TotalCount == 0 {
		return page, nil
	}

	rows, err := r.pool.Query(ctx, historyPageSQL, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return checkout.HistoryPage{}, fmt.Errorf("listing history: %w", err)
	}
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return checkout.HistoryPage{}, fmt.Errorf("listing history: %w", err)
	}
	if len(txs) == 0 {
		return page, nil
	}

	if err := r.attachItems(ctx, txs); err != nil {
		return checkout.HistoryPage{}, err
	}
	page.Transactions = txs
	return page, nil
}

func (r *TransactionRepository) attachItems(ctx context.Context, txs []checkout.Transaction) error {
	ids := make([]string, len(txs))
	index := make(map[string]int, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
		index[t.ID] = i
	}

	rows, err := r.pool.Query(ctx, historyItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing transaction items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txID string
			it   checkout.Item
		)
		if err := rows.Scan(&txID, &it.ProductID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return fmt.Errorf("scanning transaction item: %w", err)
		}
		if i, ok := index[txID]; ok {
			txs[i].Items = append(txs[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing transaction items: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func historyArgs(q checkout.HistoryQuery) []any {
	var start, end *time.Time
	if s, e, ok := q.DayRange(); ok {
		start, end = &s, &e
	}
	pattern := ""
	if q.Search != "" {
		pattern = "%" + likeEscaper.Replace(q.Search) + "%"
	}
	return []any{string(q.Method), start, end, pattern}
}

func scanTransaction(row pgx.CollectableRow) (checkout.Transaction, error) {
	var (
		t      checkout.Transaction
		method string
		change decimal.Decimal
	)
	err := row.Scan(
		&t.ID, &t.Subtotal, &t.Discount, &t.Tax, &t.Total, &t.PromotionID, &t.BOGOProductID,
		&method, &t.Reference, &t.CashTendered, &change, &t.Cashier, &t.CreatedAt,
	)
	t.Method = checkout.Method(method)
	t.Change = change
	return t, err
}
