package stock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gasdist/stockledger/internal/catalog"
	"github.com/gasdist/stockledger/internal/shared"
)

// memoryRepo serializes WithProductLock callers on one mutex and rolls back on error.
type memoryRepo struct {
	lock sync.Mutex
	mu   sync.Mutex

	products    map[int64]catalog.Product
	entries     []LedgerEntry
	txs         []Transaction
	keys        map[string]struct{}
	nextEntryID int64
	nextTxID    int64
	seq         int64
	listErr     error
}

var memoryEpoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]catalog.Product), keys: make(map[string]struct{})}
}

func (r *memoryRepo) addProduct(id int64, name, category string, price string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := catalog.Product{ID: id, Name: name, Type: category, DefaultUnit: "pcs"}
	if price != "" {
		p.UnitPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	r.products[id] = p
}

func (r *memoryRepo) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]catalog.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) WithProductLock(ctx context.Context, productIDs []int64, fn func(context.Context, TxRepository) error) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.mu.Lock()
	for _, id := range productIDs {
		if _, ok := r.products[id]; !ok {
			r.mu.Unlock()
			return shared.NotFound("product", id)
		}
	}
	entries := append([]LedgerEntry(nil), r.entries...)
	txs := append([]Transaction(nil), r.txs...)
	keys := make(map[string]struct{}, len(r.keys))
	for k := range r.keys {
		keys[k] = struct{}{}
	}
	r.mu.Unlock()

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.mu.Lock()
		r.entries, r.txs, r.keys = entries, txs, keys
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) decorate(e LedgerEntry) LedgerEntry {
	p := r.products[e.ProductID]
	e.ProductName = p.Name
	e.Category = p.Type
	e.UnitPrice = p.UnitPrice
	return e
}

func (r *memoryRepo) sortedEntries() []LedgerEntry {
	out := make([]LedgerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, r.decorate(e))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.After(b.TransactionDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

func (r *memoryRepo) ListEntries(ctx context.Context) ([]LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.sortedEntries(), nil
}

func (r *memoryRepo) GetEntry(ctx context.Context, id int64) (LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return r.decorate(e), nil
		}
	}
	return LedgerEntry{}, shared.NotFound("ledger entry", id)
}

func (r *memoryRepo) ListTransactions(ctx context.Context) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Transaction(nil), r.txs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return Transaction{}, shared.NotFound("transaction", id)
}

func (r *memoryRepo) quantity(productID int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := findItem(Derive(r.sortedEntries(), 0), productID)
	if !ok {
		return 0
	}
	return item.Quantity
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) LatestEntry(ctx context.Context, productID int64) (LedgerEntry, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	for _, e := range tx.repo.sortedEntries() {
		if e.ProductID == productID {
			return e, nil
		}
	}
	return LedgerEntry{}, ErrNoEntries
}

func (tx *memoryTx) AppendEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.repo.nextEntryID++
	tx.repo.seq++
	entry.ID = tx.repo.nextEntryID
	entry.CreatedAt = memoryEpoch.Add(time.Duration(tx.repo.seq) * time.Second)
	tx.repo.entries = append(tx.repo.entries, entry)
	return tx.repo.decorate(entry), nil
}

func (tx *memoryTx) ReplaceEntry(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	for i, e := range tx.repo.entries {
		if e.ID == entry.ID {
			entry.CreatedAt = e.CreatedAt
			tx.repo.entries[i] = entry
			return tx.repo.decorate(entry), nil
		}
	}
	return LedgerEntry{}, shared.NotFound("ledger entry", entry.ID)
}

func (tx *memoryTx) RemoveEntry(ctx context.Context, id int64) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	for i, e := range tx.repo.entries {
		if e.ID == id {
			tx.repo.entries = append(tx.repo.entries[:i:i], tx.repo.entries[i+1:]...)
			return nil
		}
	}
	return shared.NotFound("ledger entry", id)
}

func (tx *memoryTx) EntryTransactions(ctx context.Context, entryID int64) ([]Transaction, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	out := []Transaction{}
	for _, t := range tx.repo.txs {
		if t.LedgerEntryID != nil && *t.LedgerEntryID == entryID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *memoryTx) RemoveTransaction(ctx context.Context, id int64) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	for i, t := range tx.repo.txs {
		if t.ID == id {
			tx.repo.txs = append(tx.repo.txs[:i:i], tx.repo.txs[i+1:]...)
			return nil
		}
	}
	return shared.NotFound("transaction", id)
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.repo.nextTxID++
	t.ID = tx.repo.nextTxID
	t.ProductName = tx.repo.products[t.ProductID].Name
	tx.repo.txs = append(tx.repo.txs, t)
	return t, nil
}

func (tx *memoryTx) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return tx.repo.GetTransaction(ctx, id)
}

func (tx *memoryTx) CompleteTransaction(ctx context.Context, id, entryID int64) (Transaction, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	for i, t := range tx.repo.txs {
		if t.ID == id {
			t.Status = StatusCompleted
			t.LedgerEntryID = &entryID
			tx.repo.txs[i] = t
			return t, nil
		}
	}
	return Transaction{}, shared.NotFound("transaction", id)
}

func (tx *memoryTx) ClaimIdempotencyKey(ctx context.Context, key string, now time.Time) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	if _, ok := tx.repo.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	tx.repo.keys[key] = struct{}{}
	return nil
}

type stubNotifier struct {
	mu      sync.Mutex
	version int64
	bumpErr error
}

func (n *stubNotifier) Bump(ctx context.Context) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bumpErr != nil {
		return 0, n.bumpErr
	}
	n.version++
	return n.version, nil
}

func (n *stubNotifier) Version(ctx context.Context) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version, nil
}

type recordingAlerts struct {
	mu     sync.Mutex
	alerts []LowStockAlert
	err    error
}

func (a *recordingAlerts) EnqueueLowStockAlert(ctx context.Context, alert LowStockAlert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.alerts = append(a.alerts, alert)
	return nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	lowStock int
}

func (m *recordingMetrics) ObserveStockMutation(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[kind+"/"+outcome]++
}

func (m *recordingMetrics) SetLowStockItems(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lowStock = n
}

var errBoom = errors.New("boom")
