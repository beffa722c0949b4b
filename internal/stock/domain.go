package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates movement directions.
type TransactionType string

const (
	// TransactionTypeIn represents an inbound movement.
	TransactionTypeIn TransactionType = "in"
	// TransactionTypeOut represents an outbound movement.
	TransactionTypeOut TransactionType = "out"
)

// TransactionStatus tracks whether a movement affects the balance yet.
type TransactionStatus string

const (
	// StatusPending marks a movement waiting for approval.
	StatusPending TransactionStatus = "pending"
	// StatusCompleted marks a movement folded into the ledger.
	StatusCompleted TransactionStatus = "completed"
)

// Distribution reasons with special handling.
const (
	ReasonSales      = "Sales"
	ReasonOwnUse     = "OwnUse"
	ReasonConversion = "Conversion"
)

// MaxQuantity bounds every quantity field so a fold never overflows int64.
const MaxQuantity int64 = 1_000_000_000_000

// DateLayout is the day-granularity format used for transaction dates.
const DateLayout = "2006-01-02"

// Components are the quantity fields a ledger row folds into physical stock.
type Components struct {
	OpeningBalance int64 `json:"opening_balance"`
	Received       int64 `json:"received"`
	Delivered      int64 `json:"delivered"`
	Sold           int64 `json:"sold"`
	Converted      int64 `json:"converted"`
}

// Fold returns opening + received - delivered - sold - converted, floored at zero.
func (c Components) Fold() int64 {
	v := c.OpeningBalance + c.Received - c.Delivered - c.Sold - c.Converted
	if v < 0 {
		return 0
	}
	return v
}

// LedgerEntry is one stock-movement row.
type LedgerEntry struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	// Joined from products on read.
	ProductName     string              `json:"product_name,omitempty"`
	Category        string              `json:"category,omitempty"`
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	TransactionDate time.Time           `json:"transaction_date"`
	Components
	PhysicalStock int64     `json:"physical_stock"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transaction is a distribution (or inbound) movement record.
type Transaction struct {
	ID            int64             `json:"id"`
	ProductID     int64             `json:"product_id"`
	ProductName   string            `json:"product_name,omitempty"`
	Quantity      int64             `json:"quantity"`
	Type          TransactionType   `json:"type"`
	Reason        string            `json:"reason"`
	TransferredTo string            `json:"transferred_to,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Status        TransactionStatus `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	LedgerEntryID *int64            `json:"ledger_entry_id,omitempty"`
}

// DerivedStockItem is the current-state read model for one product.
type DerivedStockItem struct {
	ProductID   int64               `json:"product_id"`
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	Quantity    int64               `json:"quantity"`
	LastUpdated time.Time           `json:"last_updated"`
	Threshold   int64               `json:"threshold"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
}

// IsLow reports whether the item is at or below its threshold.
func (i DerivedStockItem) IsLow() bool {
	return i.Quantity <= i.Threshold
}

// Summary aggregates the derived set and recent transactions.
type Summary struct {
	TotalQuantity      int64            `json:"total_quantity"`
	TotalValue         decimal.Decimal  `json:"total_value"`
	LowStockCount      int              `json:"low_stock_count"`
	RecentTransactions int              `json:"recent_transactions"`
	ByProduct          map[string]int64 `json:"by_product"`
	ByCategory         map[string]int64 `json:"by_category"`
	GeneratedAt        time.Time        `json:"generated_at"`
	Version            int64            `json:"version"`
}

// StockView is a derived snapshot tagged with the ledger version it was read at.
type StockView struct {
	Version int64              `json:"version"`
	Items   []DerivedStockItem `json:"items"`
}

// LedgerFilter narrows listLedgerEntries results. Zero values mean no bound.
type LedgerFilter struct {
	From      time.Time
	To        time.Time
	ProductID int64
}

// ReceiptInput records an inbound ledger row.
type ReceiptInput struct {
	ProductID       int64  `json:"product_id" validate:"required,gt=0"`
	TransactionDate string `json:"transaction_date" validate:"omitempty,datetime=2006-01-02"`
	// Nil means "use the current derived quantity".
	OpeningBalance *int64 `json:"opening_balance" validate:"omitempty,gte=0,lte=1000000000000"`
	Received       int64  `json:"received" validate:"gte=0,lte=1000000000000"`
	Delivered      int64  `json:"delivered" validate:"gte=0,lte=1000000000000"`
	Sold           int64  `json:"sold" validate:"gte=0,lte=1000000000000"`
	Converted      int64  `json:"converted" validate:"gte=0,lte=1000000000000"`
	Note           string `json:"note" validate:"max=500"`
	// Taken from the Idempotency-Key header.
	IdempotencyKey string `json:"-" validate:"max=128"`
}

// DistributionInput records an outbound movement.
type DistributionInput struct {
	ProductID     int64  `json:"product_id" validate:"required,gt=0"`
	Quantity      int64  `json:"quantity" validate:"lte=1000000000000"`
	Reason        string `json:"reason" validate:"required,max=64"`
	TransferredTo string `json:"transferred_to" validate:"max=200"`
	Notes         string `json:"notes" validate:"max=500"`
	// Taken from the Idempotency-Key header.
	IdempotencyKey string `json:"-" validate:"max=128"`
}

// LedgerEntryInput is the full row sent when editing an entry.
type LedgerEntryInput struct {
	ProductID       int64  `json:"product_id" validate:"required,gt=0"`
	TransactionDate string `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	OpeningBalance  int64  `json:"opening_balance" validate:"gte=0,lte=1000000000000"`
	Received        int64  `json:"received" validate:"gte=0,lte=1000000000000"`
	Delivered       int64  `json:"delivered" validate:"gte=0,lte=1000000000000"`
	Sold            int64  `json:"sold" validate:"gte=0,lte=1000000000000"`
	Converted       int64  `json:"converted" validate:"gte=0,lte=1000000000000"`
	Note            string `json:"note" validate:"max=500"`
}

// Refresh reports the re-derivation that follows a write.
type Refresh struct {
	Version int64              `json:"version"`
	Stock   []DerivedStockItem `json:"stock,omitempty"`
	Error   string             `json:"refresh_error,omitempty"`
}

// ReceiptResult is returned by RecordReceipt and EditLedgerEntry.
type ReceiptResult struct {
	Entry LedgerEntry `json:"entry"`
	// Set when the receipt booked received units.
	Transaction *Transaction `json:"transaction,omitempty"`
	Refresh
}

// DistributionResult is returned by RecordDistribution and CompleteTransaction.
type DistributionResult struct {
	Transaction Transaction  `json:"transaction"`
	Entry       *LedgerEntry `json:"entry,omitempty"`
	Refresh
}

// LowStockAlert is emitted when a write leaves a product at or below threshold.
type LowStockAlert struct {
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	Threshold int64     `json:"threshold"`
	At        time.Time `json:"at"`
}

// ErrNoEntries indicates the product has no ledger rows yet.
var ErrNoEntries = errors.New("stock: product has no ledger entries")
