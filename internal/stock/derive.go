package stock

// Derive folds ledger rows into one current-state item per product.
//
// Rows are expected in descending transaction-date order (ties newest-created
// first), as returned by ListEntries. The first row seen for a product wins; a
// later row replaces it only when its date is strictly newer, which guards
// against out-of-order input. Output keeps first-seen order. Products without
// rows do not appear.
func Derive(entries []LedgerEntry, threshold int64) []DerivedStockItem {
	items := make([]DerivedStockItem, 0)
	index := make(map[int64]int)
	for _, e := range entries {
		pos, seen := index[e.ProductID]
		if !seen {
			index[e.ProductID] = len(items)
			items = append(items, itemFromEntry(e, threshold))
			continue
		}
		if e.TransactionDate.After(items[pos].LastUpdated) {
			items[pos] = itemFromEntry(e, threshold)
		}
	}
	return items
}

func itemFromEntry(e LedgerEntry, threshold int64) DerivedStockItem {
	qty := e.PhysicalStock
	if qty < 0 {
		qty = 0
	}
	return DerivedStockItem{
		ProductID:   e.ProductID,
		Name:        e.ProductName,
		Category:    e.Category,
		Quantity:    qty,
		LastUpdated: e.TransactionDate,
		Threshold:   threshold,
		UnitPrice:   e.UnitPrice,
	}
}

// currentQuantity returns the derived quantity for a product given its latest row.
func currentQuantity(latest LedgerEntry, found bool) int64 {
	if !found || latest.PhysicalStock < 0 {
		return 0
	}
	return latest.PhysicalStock
}
