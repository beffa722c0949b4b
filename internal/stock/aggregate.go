package stock

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// DefaultRecentWindow is the trailing window counted as recent activity.
const DefaultRecentWindow = 7 * 24 * time.Hour

// Summarize computes totals, low-stock count, recent activity and breakdowns.
func Summarize(items []DerivedStockItem, txs []Transaction, now time.Time, window time.Duration) Summary {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	summary := Summary{
		TotalValue:  decimal.Zero,
		ByProduct:   make(map[string]int64, len(items)),
		ByCategory:  make(map[string]int64),
		GeneratedAt: now,
	}
	for _, item := range items {
		summary.TotalQuantity += item.Quantity
		if item.UnitPrice.Valid {
			summary.TotalValue = summary.TotalValue.Add(item.UnitPrice.Decimal.Mul(decimal.NewFromInt(item.Quantity)))
		}
		if item.IsLow() {
			summary.LowStockCount++
		}
		summary.ByProduct[item.Name] += item.Quantity
		category := item.Category
		if category == "" {
			category = "Uncategorized"
		}
		summary.ByCategory[category] += item.Quantity
	}
	cutoff := now.Add(-window)
	for _, tx := range txs {
		if !tx.Timestamp.Before(cutoff) {
			summary.RecentTransactions++
		}
	}
	summary.TotalValue = summary.TotalValue.Round(2)
	return summary
}

// LowStock returns the items at or below threshold, in input order.
func LowStock(items []DerivedStockItem) []DerivedStockItem {
	out := make([]DerivedStockItem, 0)
	for _, item := range items {
		if item.IsLow() {
			out = append(out, item)
		}
	}
	return out
}

// Search matches query against name and category, case-insensitively, in input order.
func Search(items []DerivedStockItem, query string) []DerivedStockItem {
	query = strings.TrimSpace(query)
	if query == "" {
		out := make([]DerivedStockItem, len(items))
		copy(out, items)
		return out
	}
	folder := cases.Fold()
	needle := folder.String(query)
	out := make([]DerivedStockItem, 0)
	for _, item := range items {
		if strings.Contains(folder.String(item.Name), needle) || strings.Contains(folder.String(item.Category), needle) {
			out = append(out, item)
		}
	}
	return out
}

// FilterEntries applies a date range and product filter to the full ledger fetch.
func FilterEntries(entries []LedgerEntry, filter LedgerFilter) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if filter.ProductID != 0 && e.ProductID != filter.ProductID {
			continue
		}
		if !filter.From.IsZero() && e.TransactionDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.TransactionDate.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func findItem(items []DerivedStockItem, productID int64) (DerivedStockItem, bool) {
	for _, item := range items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return DerivedStockItem{}, false
}
