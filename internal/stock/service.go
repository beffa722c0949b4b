package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/gasdist/stockledger/internal/catalog"
	"github.com/gasdist/stockledger/internal/shared"
)

// RepositoryPort abstracts ledger persistence for the service.
type RepositoryPort interface {
	WithProductLock(ctx context.Context, productIDs []int64, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context) ([]LedgerEntry, error)
	GetEntry(ctx context.Context, id int64) (LedgerEntry, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
}

// ProductLister supplies the product registry.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

// Notifier tracks the ledger version and announces changes.
type Notifier interface {
	Bump(ctx context.Context) (int64, error)
	Version(ctx context.Context) (int64, error)
}

// AlertPort dispatches low-stock alerts.
type AlertPort interface {
	EnqueueLowStockAlert(ctx context.Context, alert LowStockAlert) error
}

// MetricsPort records mutation outcomes.
type MetricsPort interface {
	ObserveStockMutation(kind, outcome string)
	SetLowStockItems(n int)
}

// ServiceConfig groups tunable thresholds.
type ServiceConfig struct {
	LowStockThreshold int64
	PendingThreshold  int64
	RecentWindow      time.Duration
}

// DefaultServiceConfig returns the stock defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{LowStockThreshold: 10, PendingThreshold: 50, RecentWindow: DefaultRecentWindow}
}

// Service is the mutation gateway and read API over the ledger.
type Service struct {
	repo     RepositoryPort
	products ProductLister
	notifier Notifier
	alerts   AlertPort
	metrics  MetricsPort
	logger   *slog.Logger
	validate *validator.Validate
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService builds Service. notifier and alerts may be nil.
func NewService(repo RepositoryPort, products ProductLister, notifier Notifier, alerts AlertPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PendingThreshold <= 0 {
		cfg.PendingThreshold = DefaultServiceConfig().PendingThreshold
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultRecentWindow
	}
	return &Service{
		repo:     repo,
		products: products,
		notifier: notifier,
		alerts:   alerts,
		logger:   logger,
		validate: shared.NewValidator(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithMetrics attaches a metrics sink.
func (s *Service) WithMetrics(m MetricsPort) *Service {
	s.metrics = m
	return s
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Config exposes the effective thresholds.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// ListProducts returns the registered products.
func (s *Service) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.products.ListProducts(ctx)
}

// ListLedgerEntries returns ledger rows newest first, narrowed by filter.
func (s *Service) ListLedgerEntries(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	return FilterEntries(entries, filter), nil
}

// ListTransactions returns every movement record, newest first.
func (s *Service) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

// DeriveStock folds the full ledger into the current-state read model.
func (s *Service) DeriveStock(ctx context.Context) (StockView, error) {
	version := s.version(ctx)
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return StockView{}, err
	}
	items := Derive(entries, s.cfg.LowStockThreshold)
	s.reportLowStock(items)
	return StockView{Version: version, Items: items}, nil
}

// LowStock returns derived items at or below threshold, in derived order.
func (s *Service) LowStock(ctx context.Context) (StockView, error) {
	view, err := s.DeriveStock(ctx)
	if err != nil {
		return StockView{}, err
	}
	view.Items = LowStock(view.Items)
	return view, nil
}

// Search filters derived items by name or category.
func (s *Service) Search(ctx context.Context, query string) (StockView, error) {
	view, err := s.DeriveStock(ctx)
	if err != nil {
		return StockView{}, err
	}
	view.Items = Search(view.Items, query)
	return view, nil
}

// Summary aggregates the derived set and recent transactions.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	version := s.version(ctx)
	var (
		entries []LedgerEntry
		txs     []Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.repo.ListEntries(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.repo.ListTransactions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	items := Derive(entries, s.cfg.LowStockThreshold)
	s.reportLowStock(items)
	summary := Summarize(items, txs, s.now(), s.cfg.RecentWindow)
	summary.Version = version
	return summary, nil
}

// UnstockedProducts returns registered products that have no ledger rows yet.
func (s *Service) UnstockedProducts(ctx context.Context) ([]catalog.Product, error) {
	var (
		products []catalog.Product
		entries  []LedgerEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.products.ListProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.repo.ListEntries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stocked := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		stocked[e.ProductID] = struct{}{}
	}
	out := make([]catalog.Product, 0)
	for _, p := range products {
		if _, ok := stocked[p.ID]; !ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// RecordReceipt appends an inbound ledger row for the product.
func (s *Service) RecordReceipt(ctx context.Context, input ReceiptInput) (ReceiptResult, error) {
	result, err := s.recordReceipt(ctx, input)
	s.observe("receipt", err)
	if err != nil {
		return ReceiptResult{}, err
	}
	result.Refresh = s.refresh(ctx, input.ProductID)
	return result, nil
}

func (s *Service) recordReceipt(ctx context.Context, input ReceiptInput) (ReceiptResult, error) {
	input.Note = strings.TrimSpace(input.Note)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return ReceiptResult{}, err
	}
	requested, err := s.parseDate(input.TransactionDate)
	if err != nil {
		return ReceiptResult{}, err
	}
	if requested.After(s.today()) {
		return ReceiptResult{}, shared.NewValidationError("transaction_date", "must not be after today")
	}
	var result ReceiptResult
	err = s.repo.WithProductLock(ctx, []int64{input.ProductID}, func(ctx context.Context, tx TxRepository) error {
		result = ReceiptResult{}
		if err := s.claim(ctx, tx, input.IdempotencyKey); err != nil {
			return err
		}
		current, err := s.balance(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		date := current.bookingDate(s.today())
		if !requested.IsZero() {
			if requested.Before(current.date) {
				return shared.NewValidationError("transaction_date",
					"must not be before the latest ledger date "+current.date.Format(DateLayout))
			}
			date = requested
		}
		comps := Components{
			OpeningBalance: current.quantity,
			Received:       input.Received,
			Delivered:      input.Delivered,
			Sold:           input.Sold,
			Converted:      input.Converted,
		}
		note := input.Note
		if input.OpeningBalance != nil {
			comps.OpeningBalance = *input.OpeningBalance
			if comps.OpeningBalance != current.quantity && note == "" {
				note = fmt.Sprintf("Opening balance %d differs from recorded stock %d", comps.OpeningBalance, current.quantity)
			}
		}
		if comps.OpeningBalance > MaxQuantity-comps.Received {
			return shared.NewValidationError("received", fmt.Sprintf("would raise stock above %d", MaxQuantity))
		}
		entry, err := tx.AppendEntry(ctx, LedgerEntry{
			ProductID:       input.ProductID,
			TransactionDate: date,
			Components:      comps,
			PhysicalStock:   comps.Fold(),
			Note:            note,
		})
		if err != nil {
			return err
		}
		result.Entry = entry
		if input.Received > 0 {
			entryID := entry.ID
			inbound, err := tx.InsertTransaction(ctx, Transaction{
				ProductID:     input.ProductID,
				Quantity:      input.Received,
				Type:          TransactionTypeIn,
				Reason:        "Receipt",
				Notes:         note,
				Status:        StatusCompleted,
				Timestamp:     s.now(),
				LedgerEntryID: &entryID,
			})
			if err != nil {
				return err
			}
			result.Transaction = &inbound
		}
		return nil
	})
	return result, err
}

// RecordDistribution books an outbound movement. Quantities above the pending threshold wait for approval.
func (s *Service) RecordDistribution(ctx context.Context, input DistributionInput) (DistributionResult, error) {
	result, err := s.recordDistribution(ctx, input)
	s.observe("distribution", err)
	if err != nil {
		return DistributionResult{}, err
	}
	result.Refresh = s.refresh(ctx, input.ProductID)
	return result, nil
}

func (s *Service) recordDistribution(ctx context.Context, input DistributionInput) (DistributionResult, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	input.TransferredTo = strings.TrimSpace(input.TransferredTo)
	input.Notes = strings.TrimSpace(input.Notes)
	if err := s.validateDistribution(input); err != nil {
		return DistributionResult{}, err
	}
	status := StatusCompleted
	if input.Quantity > s.cfg.PendingThreshold {
		status = StatusPending
	}
	var result DistributionResult
	err := s.repo.WithProductLock(ctx, []int64{input.ProductID}, func(ctx context.Context, tx TxRepository) error {
		result = DistributionResult{}
		if err := s.claim(ctx, tx, input.IdempotencyKey); err != nil {
			return err
		}
		current, err := s.balance(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		if input.Quantity > current.quantity {
			return shared.NewValidationError("quantity", fmt.Sprintf("exceeds available stock of %d", current.quantity))
		}
		record := Transaction{
			ProductID:     input.ProductID,
			Quantity:      input.Quantity,
			Type:          TransactionTypeOut,
			Reason:        input.Reason,
			TransferredTo: input.TransferredTo,
			Notes:         input.Notes,
			Status:        status,
			Timestamp:     s.now(),
		}
		if status == StatusCompleted {
			entry, err := tx.AppendEntry(ctx, s.distributionEntry(record, current))
			if err != nil {
				return err
			}
			result.Entry = &entry
			record.LedgerEntryID = &entry.ID
		}
		result.Transaction, err = tx.InsertTransaction(ctx, record)
		return err
	})
	return result, err
}

func (s *Service) validateDistribution(input DistributionInput) error {
	verr := &shared.ValidationError{Fields: map[string]string{}}
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	if input.Quantity <= 0 {
		verr.Fields["quantity"] = "must be greater than 0"
	}
	if input.Reason == ReasonSales && input.TransferredTo == "" {
		verr.Fields["transferred_to"] = "is required for sales"
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// CompleteTransaction approves a pending distribution and folds it into the ledger.
func (s *Service) CompleteTransaction(ctx context.Context, id int64) (DistributionResult, error) {
	result, err := s.completeTransaction(ctx, id)
	s.observe("complete", err)
	if err != nil {
		return DistributionResult{}, err
	}
	result.Refresh = s.refresh(ctx, result.Transaction.ProductID)
	return result, nil
}

func (s *Service) completeTransaction(ctx context.Context, id int64) (DistributionResult, error) {
	pending, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return DistributionResult{}, err
	}
	var result DistributionResult
	err = s.repo.WithProductLock(ctx, []int64{pending.ProductID}, func(ctx context.Context, tx TxRepository) error {
		result = DistributionResult{}
		locked, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.Status != StatusPending {
			return shared.NewValidationError("status", "transaction is not pending")
		}
		current, err := s.balance(ctx, tx, locked.ProductID)
		if err != nil {
			return err
		}
		if locked.Quantity > current.quantity {
			return shared.NewValidationError("quantity", fmt.Sprintf("exceeds available stock of %d", current.quantity))
		}
		entry, err := tx.AppendEntry(ctx, s.distributionEntry(locked, current))
		if err != nil {
			return err
		}
		result.Entry = &entry
		result.Transaction, err = tx.CompleteTransaction(ctx, id, entry.ID)
		return err
	})
	return result, err
}

// EditLedgerEntry replaces every field of an existing row and recomputes its physical stock.
func (s *Service) EditLedgerEntry(ctx context.Context, id int64, input LedgerEntryInput) (ReceiptResult, error) {
	result, err := s.editLedgerEntry(ctx, id, input)
	s.observe("edit", err)
	if err != nil {
		return ReceiptResult{}, err
	}
	result.Refresh = s.refresh(ctx, result.Entry.ProductID)
	return result, nil
}

func (s *Service) editLedgerEntry(ctx context.Context, id int64, input LedgerEntryInput) (ReceiptResult, error) {
	input.Note = strings.TrimSpace(input.Note)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return ReceiptResult{}, err
	}
	date, err := s.parseDate(input.TransactionDate)
	if err != nil {
		return ReceiptResult{}, err
	}
	existing, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return ReceiptResult{}, err
	}
	comps := Components{
		OpeningBalance: input.OpeningBalance,
		Received:       input.Received,
		Delivered:      input.Delivered,
		Sold:           input.Sold,
		Converted:      input.Converted,
	}
	var result ReceiptResult
	err = s.repo.WithProductLock(ctx, []int64{existing.ProductID, input.ProductID}, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.ReplaceEntry(ctx, LedgerEntry{
			ID:              id,
			ProductID:       input.ProductID,
			TransactionDate: date,
			Components:      comps,
			PhysicalStock:   comps.Fold(),
			Note:            input.Note,
		})
		if err != nil {
			return err
		}
		result = ReceiptResult{Entry: entry}
		return nil
	})
	return result, err
}

// DeleteLedgerEntry removes a row.
func (s *Service) DeleteLedgerEntry(ctx context.Context, id int64) (Refresh, error) {
	productID, err := s.deleteLedgerEntry(ctx, id)
	s.observe("delete", err)
	if err != nil {
		return Refresh{}, err
	}
	return s.refresh(ctx, productID), nil
}

func (s *Service) deleteLedgerEntry(ctx context.Context, id int64) (int64, error) {
	existing, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return 0, err
	}
	err = s.repo.WithProductLock(ctx, []int64{existing.ProductID}, func(ctx context.Context, tx TxRepository) error {
		linked, err := tx.EntryTransactions(ctx, id)
		if err != nil {
			return err
		}
		for _, t := range linked {
			if t.Type == TransactionTypeOut {
				return shared.NewValidationError("id", fmt.Sprintf("ledger entry backs distribution %d", t.ID))
			}
		}
		// Receipt records describe the row itself and go with it.
		for _, t := range linked {
			if err := tx.RemoveTransaction(ctx, t.ID); err != nil {
				return err
			}
		}
		return tx.RemoveEntry(ctx, id)
	})
	return existing.ProductID, err
}

func (s *Service) distributionEntry(t Transaction, current balance) LedgerEntry {
	comps := Components{OpeningBalance: current.quantity}
	switch t.Reason {
	case ReasonSales:
		comps.Sold = t.Quantity
	case ReasonConversion:
		comps.Converted = t.Quantity
	default:
		comps.Delivered = t.Quantity
	}
	note := t.Notes
	if note == "" {
		note = t.Reason
		if t.TransferredTo != "" {
			note += " to " + t.TransferredTo
		}
	}
	return LedgerEntry{
		ProductID:       t.ProductID,
		TransactionDate: current.bookingDate(s.today()),
		Components:      comps,
		PhysicalStock:   comps.Fold(),
		Note:            note,
	}
}

// balance is a product's derived quantity and the date of the row it came from.
type balance struct {
	quantity int64
	date     time.Time
}

// bookingDate keeps new rows on or after the latest row so derivation picks them up.
func (b balance) bookingDate(today time.Time) time.Time {
	if b.date.After(today) {
		return b.date
	}
	return today
}

func (s *Service) balance(ctx context.Context, tx TxRepository, productID int64) (balance, error) {
	latest, err := tx.LatestEntry(ctx, productID)
	if errors.Is(err, ErrNoEntries) {
		return balance{quantity: currentQuantity(LedgerEntry{}, false)}, nil
	}
	if err != nil {
		return balance{}, err
	}
	return balance{quantity: currentQuantity(latest, true), date: latest.TransactionDate}, nil
}

func (s *Service) claim(ctx context.Context, tx TxRepository, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return tx.ClaimIdempotencyKey(ctx, key, s.now())
}

// refresh bumps the version, re-derives and raises alerts. Failures are reported, never returned.
func (s *Service) refresh(ctx context.Context, productID int64) Refresh {
	var (
		out  Refresh
		errs []error
	)
	if s.notifier != nil {
		version, err := s.notifier.Bump(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("bump version: %w", err))
		} else {
			out.Version = version
		}
	}
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("re-derive: %w", err))
	} else {
		out.Stock = Derive(entries, s.cfg.LowStockThreshold)
		s.reportLowStock(out.Stock)
		if item, ok := findItem(out.Stock, productID); ok && item.IsLow() && s.alerts != nil {
			alert := LowStockAlert{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				Threshold: item.Threshold,
				At:        s.now(),
			}
			if err := s.alerts.EnqueueLowStockAlert(ctx, alert); err != nil {
				errs = append(errs, fmt.Errorf("low stock alert: %w", err))
			}
		}
	}
	if len(errs) > 0 {
		joined := errors.Join(errs...)
		s.logger.Warn("stock refresh incomplete", slog.Int64("product_id", productID), slog.Any("error", joined))
		out.Error = joined.Error()
	}
	return out
}

func (s *Service) version(ctx context.Context) int64 {
	if s.notifier == nil {
		return 0
	}
	v, err := s.notifier.Version(ctx)
	if err != nil {
		s.logger.Warn("read ledger version", slog.Any("error", err))
		return 0
	}
	return v
}

func (s *Service) reportLowStock(items []DerivedStockItem) {
	if s.metrics == nil {
		return
	}
	s.metrics.SetLowStockItems(len(LowStock(items)))
}

func (s *Service) observe(kind string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStockMutation(kind, outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// parseDate returns the zero time for an empty value.
func (s *Service) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, shared.NewValidationError("transaction_date", "must be a date formatted "+DateLayout)
	}
	return t, nil
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) notifierVersion(ctx context.Context) (int64, error) {
	if s.notifier == nil {
		return 0, nil
	}
	return s.notifier.Version(ctx)
}
