package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func row(id, productID int64, date string, stock int64) LedgerEntry {
	return LedgerEntry{ID: id, ProductID: productID, ProductName: "P", TransactionDate: day(date), PhysicalStock: stock}
}

func TestDeriveLatestRowWins(t *testing.T) {
	entries := []LedgerEntry{
		row(3, 1, "2024-03-10", 40),
		row(5, 2, "2024-03-09", 7),
		row(2, 1, "2024-03-05", 50),
		row(4, 2, "2024-03-01", 100),
	}
	items := Derive(entries, 10)
	require.Len(t, items, 2)
	require.EqualValues(t, 1, items[0].ProductID)
	require.EqualValues(t, 40, items[0].Quantity)
	require.Equal(t, day("2024-03-10"), items[0].LastUpdated)
	require.EqualValues(t, 2, items[1].ProductID)
	require.EqualValues(t, 7, items[1].Quantity)
	require.True(t, items[1].IsLow())
}

func TestDeriveToleratesOutOfOrderInput(t *testing.T) {
	entries := []LedgerEntry{
		row(1, 1, "2024-03-01", 10),
		row(2, 1, "2024-03-12", 25),
		row(3, 1, "2024-03-05", 99),
	}
	items := Derive(entries, 10)
	require.Len(t, items, 1)
	require.EqualValues(t, 25, items[0].Quantity)
}

func TestDeriveSameDateKeepsFirstSeen(t *testing.T) {
	entries := []LedgerEntry{
		row(9, 1, "2024-03-10", 12),
		row(8, 1, "2024-03-10", 30),
	}
	items := Derive(entries, 10)
	require.EqualValues(t, 12, items[0].Quantity)
}

func TestDeriveClampsNegativeStock(t *testing.T) {
	items := Derive([]LedgerEntry{row(1, 1, "2024-03-10", -4)}, 10)
	require.EqualValues(t, 0, items[0].Quantity)
}

func TestDeriveIsIdempotent(t *testing.T) {
	entries := []LedgerEntry{
		row(3, 1, "2024-03-10", 40),
		row(5, 2, "2024-03-09", 7),
		row(2, 1, "2024-03-05", 50),
	}
	require.Equal(t, Derive(entries, 10), Derive(entries, 10))
	require.Empty(t, Derive(nil, 10))
}

func TestComponentsFold(t *testing.T) {
	require.EqualValues(t, 39, Components{OpeningBalance: 40, Received: 5, Delivered: 3, Sold: 2, Converted: 1}.Fold())
	require.EqualValues(t, 0, Components{OpeningBalance: 2, Sold: 5}.Fold())
}

func TestCurrentQuantity(t *testing.T) {
	require.EqualValues(t, 0, currentQuantity(LedgerEntry{}, false))
	require.EqualValues(t, 0, currentQuantity(LedgerEntry{PhysicalStock: -3}, true))
	require.EqualValues(t, 17, currentQuantity(LedgerEntry{PhysicalStock: 17}, true))
}
