package stock

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleItems() []DerivedStockItem {
	return []DerivedStockItem{
		{ProductID: 1, Name: "LPG 12kg", Category: "Cylinder", Quantity: 4, Threshold: 10, UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("185000.50"))},
		{ProductID: 2, Name: "Regulator", Category: "Accessory", Quantity: 30, Threshold: 10},
		{ProductID: 3, Name: "Selang Gas", Category: "", Quantity: 10, Threshold: 10, UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("12500"))},
		{ProductID: 4, Name: "ÉLAN Torch", Category: "Accessory", Quantity: 0, Threshold: 10},
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{ID: 1, Timestamp: now.Add(-time.Hour)},
		{ID: 2, Timestamp: now.Add(-7 * 24 * time.Hour)},
		{ID: 3, Timestamp: now.Add(-8 * 24 * time.Hour)},
	}
	summary := Summarize(sampleItems(), txs, now, 0)

	require.EqualValues(t, 44, summary.TotalQuantity)
	require.Equal(t, "865002", summary.TotalValue.String())
	require.Equal(t, 3, summary.LowStockCount)
	require.Equal(t, 2, summary.RecentTransactions)
	require.EqualValues(t, 30, summary.ByProduct["Regulator"])
	require.EqualValues(t, 30, summary.ByCategory["Accessory"])
	require.EqualValues(t, 10, summary.ByCategory["Uncategorized"])
	require.Equal(t, now, summary.GeneratedAt)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil, nil, time.Now(), time.Hour)
	require.Zero(t, summary.TotalQuantity)
	require.True(t, summary.TotalValue.IsZero())
	require.Empty(t, summary.ByProduct)
}

func TestLowStockPreservesOrder(t *testing.T) {
	items := sampleItems()
	low := LowStock(items)
	require.Len(t, low, 3)
	require.EqualValues(t, []int64{1, 3, 4}, []int64{low[0].ProductID, low[1].ProductID, low[2].ProductID})
	for _, item := range items {
		contained := false
		for _, l := range low {
			if l.ProductID == item.ProductID {
				contained = true
			}
		}
		require.Equal(t, item.Quantity <= item.Threshold, contained)
	}
}

func TestSearch(t *testing.T) {
	items := sampleItems()

	require.Len(t, Search(items, ""), 4)
	require.Len(t, Search(items, "   "), 4)

	byCategory := Search(items, "accESSory")
	require.Len(t, byCategory, 2)
	require.EqualValues(t, 2, byCategory[0].ProductID)
	require.EqualValues(t, 4, byCategory[1].ProductID)

	folded := Search(items, "élan")
	require.Len(t, folded, 1)

	require.Empty(t, Search(items, "oxygen"))
}

func TestFilterEntries(t *testing.T) {
	entries := []LedgerEntry{
		row(1, 1, "2024-03-10", 1),
		row(2, 2, "2024-03-08", 1),
		row(3, 1, "2024-03-01", 1),
	}
	require.Len(t, FilterEntries(entries, LedgerFilter{}), 3)
	require.Len(t, FilterEntries(entries, LedgerFilter{ProductID: 1}), 2)
	got := FilterEntries(entries, LedgerFilter{From: day("2024-03-02"), To: day("2024-03-08")})
	require.Len(t, got, 1)
	require.EqualValues(t, 2, got[0].ID)
}
