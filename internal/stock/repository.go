package stock

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gasdist/stockledger/internal/platform/db"
	"github.com/gasdist/stockledger/internal/shared"
)

// Repository persists ledger rows and transactions in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, maxAttempts: 3}
}

// TxRepository exposes the writes allowed while a product lock is held.
type TxRepository interface {
	LatestEntry(ctx context.Context, productID int64) (LedgerEntry, error)
	AppendEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
	ReplaceEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
	RemoveEntry(ctx context.Context, id int64) error
	EntryTransactions(ctx context.Context, entryID int64) ([]Transaction, error)
	RemoveTransaction(ctx context.Context, id int64) error
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error)
	CompleteTransaction(ctx context.Context, id, entryID int64) (Transaction, error)
	ClaimIdempotencyKey(ctx context.Context, key string, now time.Time) error
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type txRepository struct {
	tx pgx.Tx
}

var errRepositoryNotInitialised = errors.New("stock repository not initialised")

// WithProductLock runs fn in a SERIALIZABLE transaction holding row locks on every product in productIDs.
// Locks are taken in ascending id order. Serialization failures are retried a bounded number of times.
func (r *Repository) WithProductLock(ctx context.Context, productIDs []int64, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return shared.Storage("begin", errRepositoryNotInitialised)
	}
	ids := uniqueSorted(productIDs)
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = db.WithTx(ctx, r.pool, pgx.Serializable, func(tx pgx.Tx) error {
			for _, id := range ids {
				var locked int64
				if err := tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						return shared.NotFound("product", id)
					}
					return shared.Storage("lock product", err)
				}
			}
			return fn(ctx, &txRepository{tx: tx})
		})
		if !db.IsSerializationFailure(err) {
			break
		}
	}
	return shared.Storage("commit", err)
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

const entrySelect = `SELECT e.id, e.product_id, p.name, p.type, p.unit_price, e.transaction_date,
e.opening_balance, e.received, e.delivered, e.sold, e.converted, e.physical_stock, e.note, e.created_at
FROM ledger_entries e
JOIN products p ON p.id = e.product_id`

const entryOrder = ` ORDER BY e.transaction_date DESC, e.created_at DESC, e.id DESC`

func scanEntry(row pgx.Row) (LedgerEntry, error) {
	var e LedgerEntry
	err := row.Scan(&e.ID, &e.ProductID, &e.ProductName, &e.Category, &e.UnitPrice, &e.TransactionDate,
		&e.OpeningBalance, &e.Received, &e.Delivered, &e.Sold, &e.Converted, &e.PhysicalStock, &e.Note, &e.CreatedAt)
	return e, err
}

// ListEntries returns every ledger row, newest transaction date first.
func (r *Repository) ListEntries(ctx context.Context) ([]LedgerEntry, error) {
	if r == nil || r.pool == nil {
		return nil, shared.Storage("list entries", errRepositoryNotInitialised)
	}
	rows, err := r.pool.Query(ctx, entrySelect+entryOrder)
	if err != nil {
		return nil, shared.Storage("list entries", err)
	}
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, shared.Storage("scan entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list entries", err)
	}
	return entries, nil
}

// GetEntry fetches one ledger row.
func (r *Repository) GetEntry(ctx context.Context, id int64) (LedgerEntry, error) {
	if r == nil || r.pool == nil {
		return LedgerEntry{}, shared.Storage("get entry", errRepositoryNotInitialised)
	}
	return getEntry(ctx, r.pool, id)
}

func getEntry(ctx context.Context, q querier, id int64) (LedgerEntry, error) {
	e, err := scanEntry(q.QueryRow(ctx, entrySelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerEntry{}, shared.NotFound("ledger entry", id)
		}
		return LedgerEntry{}, shared.Storage("get entry", err)
	}
	return e, nil
}

const transactionSelect = `SELECT t.id, t.product_id, p.name, t.quantity, t.type, t.reason, t.transferred_to,
t.notes, t.status, t.timestamp, t.ledger_entry_id
FROM transactions t
JOIN products p ON p.id = t.product_id`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.ProductID, &t.ProductName, &t.Quantity, &t.Type, &t.Reason, &t.TransferredTo,
		&t.Notes, &t.Status, &t.Timestamp, &t.LedgerEntryID)
	return t, err
}

// ListTransactions returns every movement record, newest first.
func (r *Repository) ListTransactions(ctx context.Context) ([]Transaction, error) {
	if r == nil || r.pool == nil {
		return nil, shared.Storage("list transactions", errRepositoryNotInitialised)
	}
	rows, err := r.pool.Query(ctx, transactionSelect+` ORDER BY t.timestamp DESC, t.id DESC`)
	if err != nil {
		return nil, shared.Storage("list transactions", err)
	}
	defer rows.Close()
	txs := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, shared.Storage("scan transaction", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list transactions", err)
	}
	return txs, nil
}

// GetTransaction fetches one movement record.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	if r == nil || r.pool == nil {
		return Transaction{}, shared.Storage("get transaction", errRepositoryNotInitialised)
	}
	return getTransaction(ctx, r.pool, id, false)
}

func getTransaction(ctx context.Context, q querier, id int64, forUpdate bool) (Transaction, error) {
	query := transactionSelect + ` WHERE t.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF t`
	}
	t, err := scanTransaction(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.NotFound("transaction", id)
		}
		return Transaction{}, shared.Storage("get transaction", err)
	}
	return t, nil
}

func (r *txRepository) LatestEntry(ctx context.Context, productID int64) (LedgerEntry, error) {
	e, err := scanEntry(r.tx.QueryRow(ctx, entrySelect+` WHERE e.product_id = $1`+entryOrder+` LIMIT 1`, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerEntry{}, ErrNoEntries
		}
		return LedgerEntry{}, shared.Storage("latest entry", err)
	}
	return e, nil
}

func (r *txRepository) AppendEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
(product_id, transaction_date, opening_balance, received, delivered, sold, converted, physical_stock, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
RETURNING id`,
		entry.ProductID, entry.TransactionDate, entry.OpeningBalance, entry.Received, entry.Delivered,
		entry.Sold, entry.Converted, entry.PhysicalStock, entry.Note).Scan(&id)
	if err != nil {
		return LedgerEntry{}, shared.Storage("append entry", err)
	}
	return getEntry(ctx, r.tx, id)
}

func (r *txRepository) ReplaceEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET product_id = $1, transaction_date = $2, opening_balance = $3,
received = $4, delivered = $5, sold = $6, converted = $7, physical_stock = $8, note = $9
WHERE id = $10`,
		entry.ProductID, entry.TransactionDate, entry.OpeningBalance, entry.Received, entry.Delivered,
		entry.Sold, entry.Converted, entry.PhysicalStock, entry.Note, entry.ID)
	if err != nil {
		return LedgerEntry{}, shared.Storage("replace entry", err)
	}
	if tag.RowsAffected() == 0 {
		return LedgerEntry{}, shared.NotFound("ledger entry", entry.ID)
	}
	return getEntry(ctx, r.tx, entry.ID)
}

func (r *txRepository) RemoveEntry(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return shared.Storage("remove entry", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("ledger entry", id)
	}
	return nil
}

func (r *txRepository) EntryTransactions(ctx context.Context, entryID int64) ([]Transaction, error) {
	rows, err := r.tx.Query(ctx, transactionSelect+` WHERE t.ledger_entry_id = $1 ORDER BY t.id FOR UPDATE OF t`, entryID)
	if err != nil {
		return nil, shared.Storage("entry transactions", err)
	}
	defer rows.Close()
	txs := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, shared.Storage("scan transaction", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("entry transactions", err)
	}
	return txs, nil
}

func (r *txRepository) RemoveTransaction(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return shared.Storage("remove transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("transaction", id)
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions
(product_id, quantity, type, reason, transferred_to, notes, status, timestamp, ledger_entry_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		t.ProductID, t.Quantity, string(t.Type), t.Reason, t.TransferredTo, t.Notes, string(t.Status),
		t.Timestamp, t.LedgerEntryID).Scan(&id)
	if err != nil {
		return Transaction{}, shared.Storage("insert transaction", err)
	}
	return getTransaction(ctx, r.tx, id, false)
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return getTransaction(ctx, r.tx, id, true)
}

func (r *txRepository) CompleteTransaction(ctx context.Context, id, entryID int64) (Transaction, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE transactions SET status = $1, ledger_entry_id = $2 WHERE id = $3`,
		string(StatusCompleted), entryID, id)
	if err != nil {
		return Transaction{}, shared.Storage("complete transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return Transaction{}, shared.NotFound("transaction", id)
	}
	return getTransaction(ctx, r.tx, id, false)
}

func (r *txRepository) ClaimIdempotencyKey(ctx context.Context, key string, now time.Time) error {
	return shared.ClaimIdempotencyKey(ctx, r.tx, key, "stock", now)
}
