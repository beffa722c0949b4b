package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gasdist/stockledger/internal/platform/db"
	"github.com/gasdist/stockledger/internal/shared"
)

// Repository persists products and customers.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ProductReferenced(ctx context.Context, id int64) (bool, error)

	ListCustomers(ctx context.Context) ([]Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, c Customer) (Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const productColumns = `id, name, type, default_unit, description, unit_price, created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.DefaultUnit, &p.Description, &p.UnitPrice, &p.CreatedAt)
	return p, err
}

func (r *repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, shared.Storage("list products", err)
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, shared.Storage("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list products", err)
	}
	return products, nil
}

func (r *repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NotFound("product", id)
		}
		return Product{}, shared.Storage("get product", err)
	}
	return p, nil
}

func (r *repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	created, err := scanProduct(r.db.QueryRow(ctx, `INSERT INTO products (name, type, default_unit, description, unit_price, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING `+productColumns, p.Name, p.Type, p.DefaultUnit, p.Description, p.UnitPrice))
	if err != nil {
		return Product{}, shared.Storage("create product", err)
	}
	return created, nil
}

func (r *repository) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	updated, err := scanProduct(r.db.QueryRow(ctx, `UPDATE products SET name = $1, type = $2, default_unit = $3, description = $4, unit_price = $5
WHERE id = $6 RETURNING `+productColumns, p.Name, p.Type, p.DefaultUnit, p.Description, p.UnitPrice, p.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NotFound("product", p.ID)
		}
		return Product{}, shared.Storage("update product", err)
	}
	return updated, nil
}

func (r *repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return errProductInUse
		}
		return shared.Storage("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("product", id)
	}
	return nil
}

func (r *repository) ProductReferenced(ctx context.Context, id int64) (bool, error) {
	var referenced bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE product_id = $1)
OR EXISTS (SELECT 1 FROM transactions WHERE product_id = $1)`, id).Scan(&referenced)
	if err != nil {
		return false, shared.Storage("check product references", err)
	}
	return referenced, nil
}

const customerColumns = `id, name, email, phone, address, is_active, created_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.IsActive, &c.CreatedAt)
	return c, err
}

func (r *repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, shared.Storage("list customers", err)
	}
	defer rows.Close()
	customers := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, shared.Storage("scan customer", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("list customers", err)
	}
	return customers, nil
}

func (r *repository) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	created, err := scanCustomer(r.db.QueryRow(ctx, `INSERT INTO customers (name, email, phone, address, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING `+customerColumns, c.Name, c.Email, c.Phone, c.Address, c.IsActive))
	if err != nil {
		return Customer{}, shared.Storage("create customer", err)
	}
	return created, nil
}

func (r *repository) UpdateCustomer(ctx context.Context, c Customer) (Customer, error) {
	updated, err := scanCustomer(r.db.QueryRow(ctx, `UPDATE customers SET name = $1, email = $2, phone = $3, address = $4, is_active = $5
WHERE id = $6 RETURNING `+customerColumns, c.Name, c.Email, c.Phone, c.Address, c.IsActive, c.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.NotFound("customer", c.ID)
		}
		return Customer{}, shared.Storage("update customer", err)
	}
	return updated, nil
}

func (r *repository) DeleteCustomer(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return shared.Storage("delete customer", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("customer", id)
	}
	return nil
}
