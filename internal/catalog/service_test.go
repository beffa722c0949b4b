package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gasdist/stockledger/internal/shared"
	_ "github.com/gasdist/stockledger/testing"
)

type memoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	products   map[int64]Product
	customers  map[int64]Customer
	referenced map[int64]bool
	failWith   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:   make(map[int64]Product),
		customers:  make(map[int64]Customer),
		referenced: make(map[int64]bool),
	}
}

func (r *memoryRepo) ListProducts(ctx context.Context) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, shared.NotFound("product", id)
	}
	return p, nil
}

func (r *memoryRepo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryRepo) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return Product{}, shared.NotFound("product", p.ID)
	}
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryRepo) DeleteProduct(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return shared.NotFound("product", id)
	}
	delete(r.products, id)
	return nil
}

func (r *memoryRepo) ProductReferenced(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.referenced[id], nil
}

func (r *memoryRepo) ListCustomers(ctx context.Context) ([]Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryRepo) UpdateCustomer(ctx context.Context, c Customer) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.ID]; !ok {
		return Customer{}, shared.NotFound("customer", c.ID)
	}
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryRepo) DeleteCustomer(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[id]; !ok {
		return shared.NotFound("customer", id)
	}
	delete(r.customers, id)
	return nil
}

func validProduct() ProductInput {
	price := decimal.RequireFromString("125.505")
	return ProductInput{Name: " LPG 12kg ", Type: "Cylinder", DefaultUnit: "pcs", UnitPrice: &price}
}

func TestRegisterProductNormalizesInput(t *testing.T) {
	svc := NewService(newMemoryRepo())

	p, err := svc.RegisterProduct(context.Background(), validProduct())
	require.NoError(t, err)
	require.Equal(t, "LPG 12kg", p.Name)
	require.True(t, p.UnitPrice.Valid)
	require.Equal(t, "125.51", p.UnitPrice.Decimal.StringFixed(2))
}

func TestRegisterProductValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.RegisterProduct(context.Background(), ProductInput{Type: "Cylinder"})
	require.ErrorIs(t, err, shared.ErrValidation)
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "name")
	require.Contains(t, verr.Fields, "default_unit")

	negative := decimal.NewFromInt(-1)
	input := validProduct()
	input.UnitPrice = &negative
	_, err = svc.RegisterProduct(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestProductWithoutPriceIsAllowed(t *testing.T) {
	svc := NewService(newMemoryRepo())
	input := validProduct()
	input.UnitPrice = nil

	p, err := svc.RegisterProduct(context.Background(), input)
	require.NoError(t, err)
	require.False(t, p.UnitPrice.Valid)
}

func TestReferencedProductIsImmutable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	p, err := svc.RegisterProduct(context.Background(), validProduct())
	require.NoError(t, err)
	repo.referenced[p.ID] = true

	_, err = svc.UpdateProduct(context.Background(), p.ID, validProduct())
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, svc.DeleteProduct(context.Background(), p.ID), shared.ErrValidation)

	repo.referenced[p.ID] = false
	require.NoError(t, svc.DeleteProduct(context.Background(), p.ID))
	_, err = svc.GetProduct(context.Background(), p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateMissingProduct(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.UpdateProduct(context.Background(), 42, validProduct())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCustomerLifecycle(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, CustomerInput{Name: "Warung Sari", Email: "sari@example.com"})
	require.NoError(t, err)
	require.True(t, c.IsActive)

	inactive := false
	c, err = svc.UpdateCustomer(ctx, c.ID, CustomerInput{Name: "Warung Sari", IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, c.IsActive)

	_, err = svc.CreateCustomer(ctx, CustomerInput{Name: "Bad", Email: "not-an-email"})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.NoError(t, svc.DeleteCustomer(ctx, c.ID))
	require.ErrorIs(t, svc.DeleteCustomer(ctx, c.ID), shared.ErrNotFound)
}
