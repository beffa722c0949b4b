package rbac

import "github.com/gasdist/stockledger/internal/shared"

// Role groups a fixed set of permissions.
type Role struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// DefaultRoles is the static role-to-permission table.
func DefaultRoles() []Role {
	all := append(shared.StockScopes(), shared.CatalogScopes()...)
	all = append(all, shared.PermPermissionsView)
	return []Role{
		{
			Name:        shared.RoleAdmin,
			Description: "Full access",
			Permissions: all,
		},
		{
			Name:        shared.RoleManager,
			Description: "Records, corrects and approves stock movements",
			Permissions: []string{
				shared.PermStockView, shared.PermStockRecord, shared.PermStockEdit, shared.PermStockApprove,
				shared.PermCatalogView, shared.PermCatalogEdit,
				shared.PermCustomersView, shared.PermCustomersEdit,
			},
		},
		{
			Name:        shared.RoleStaff,
			Description: "Records receipts and distributions",
			Permissions: []string{
				shared.PermStockView, shared.PermStockRecord,
				shared.PermCatalogView, shared.PermCustomersView,
			},
		},
		{
			Name:        shared.RoleViewer,
			Description: "Read-only dashboard",
			Permissions: []string{shared.PermStockView, shared.PermCatalogView, shared.PermCustomersView},
		},
	}
}
