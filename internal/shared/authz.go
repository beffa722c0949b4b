package shared

// Stock and catalog permissions.
const (
	PermStockView    = "stock.view"
	PermStockRecord  = "stock.record"
	PermStockEdit    = "stock.edit"
	PermStockApprove = "stock.approve"

	PermCatalogView = "catalog.view"
	PermCatalogEdit = "catalog.edit"

	PermCustomersView = "customers.view"
	PermCustomersEdit = "customers.edit"

	PermPermissionsView = "permissions.view"
)

// Roles known to the static permission table.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
	RoleViewer  = "viewer"
)

// StockScopes lists all permissions related to stock movements.
func StockScopes() []string {
	return []string{
		PermStockView,
		PermStockRecord,
		PermStockEdit,
		PermStockApprove,
	}
}

// CatalogScopes lists product and customer permissions.
func CatalogScopes() []string {
	return []string{
		PermCatalogView,
		PermCatalogEdit,
		PermCustomersView,
		PermCustomersEdit,
	}
}
