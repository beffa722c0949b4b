package catalog

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/gasdist/stockledger/internal/shared"
)

// errProductInUse rejects changes to a product that already has stock movements.
var errProductInUse = shared.NewValidationError("product_id", "product has stock movements and cannot be changed")

// Service coordinates product and customer maintenance.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService constructs a catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: shared.NewValidator()}
}

// ListProducts returns all products ordered by name.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

// GetProduct fetches one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.NewValidationError("id", "must be greater than 0")
	}
	return s.repo.GetProduct(ctx, id)
}

// RegisterProduct creates a product.
func (s *Service) RegisterProduct(ctx context.Context, input ProductInput) (Product, error) {
	p, err := s.productFromInput(input)
	if err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct replaces a product's attributes. Products with stock movements are immutable.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error) {
	p, err := s.productFromInput(input)
	if err != nil {
		return Product{}, err
	}
	if err := s.ensureUnreferenced(ctx, id); err != nil {
		return Product{}, err
	}
	p.ID = id
	return s.repo.UpdateProduct(ctx, p)
}

// DeleteProduct removes a product without stock movements.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.ensureUnreferenced(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) ensureUnreferenced(ctx context.Context, id int64) error {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}
	referenced, err := s.repo.ProductReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return errProductInUse
	}
	return nil
}

func (s *Service) productFromInput(input ProductInput) (Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Type = strings.TrimSpace(input.Type)
	input.DefaultUnit = strings.TrimSpace(input.DefaultUnit)
	input.Description = strings.TrimSpace(input.Description)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Product{}, err
	}
	p := Product{
		Name:        input.Name,
		Type:        input.Type,
		DefaultUnit: input.DefaultUnit,
		Description: input.Description,
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return Product{}, shared.NewValidationError("unit_price", "must not be negative")
		}
		p.UnitPrice = decimal.NewNullDecimal(input.UnitPrice.Round(2))
	}
	return p, nil
}

// ListCustomers returns all customers ordered by name.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// CreateCustomer registers a customer. New customers are active unless stated otherwise.
func (s *Service) CreateCustomer(ctx context.Context, input CustomerInput) (Customer, error) {
	c, err := s.customerFromInput(input)
	if err != nil {
		return Customer{}, err
	}
	return s.repo.CreateCustomer(ctx, c)
}

// UpdateCustomer replaces a customer record.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, input CustomerInput) (Customer, error) {
	if id <= 0 {
		return Customer{}, shared.NewValidationError("id", "must be greater than 0")
	}
	c, err := s.customerFromInput(input)
	if err != nil {
		return Customer{}, err
	}
	c.ID = id
	return s.repo.UpdateCustomer(ctx, c)
}

// DeleteCustomer removes a customer.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.NewValidationError("id", "must be greater than 0")
	}
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) customerFromInput(input CustomerInput) (Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Address = strings.TrimSpace(input.Address)
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Customer{}, err
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	return Customer{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: active,
	}, nil
}
