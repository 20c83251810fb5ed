package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("product not found")
	ErrNotOwner     = errors.New("you do not own this product")
)

type ProductRepo interface {
	Create(ctx context.Context, p Product) error
	Get(ctx context.Context, id string) (Product, error)
	Update(ctx context.Context, p Product) error
	ListActive(ctx context.Context, query string, limit int) ([]Product, error)
	BySeller(ctx context.Context, sellerID string) ([]Product, error)
}

type Service struct {
	repo  ProductRepo
	clock func() time.Time
}

func NewService(repo ProductRepo) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func validate(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" || len(in.Name) > 200 || in.Price.IsNegative() || in.Stock < 0 {
		return Input{}, ErrInvalidInput
	}
	in.Price = in.Price.Round(2)
	return in, nil
}

func (s *Service) CreateProduct(ctx context.Context, sellerID string, in Input) (Product, error) {
	in, err := validate(in)
	if err != nil {
		return Product{}, err
	}
	now := s.clock().UTC()
	p := Product{
		ID:          uuid.NewString(),
		SellerID:    sellerID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *Service) owned(ctx context.Context, sellerID, id string) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.SellerID != sellerID {
		return Product{}, ErrNotOwner
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, sellerID, id string, in Input) (Product, error) {
	in, err := validate(in)
	if err != nil {
		return Product{}, err
	}
	p, err := s.owned(ctx, sellerID, id)
	if err != nil {
		return Product{}, err
	}
	p.Name, p.Description, p.Price, p.Stock = in.Name, in.Description, in.Price, in.Stock
	p.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Deactivate hides a product from buyers. Existing orders keep their
// snapshotted items.
func (s *Service) Deactivate(ctx context.Context, sellerID, id string) (Product, error) {
	p, err := s.owned(ctx, sellerID, id)
	if err != nil {
		return Product{}, err
	}
	if !p.Active {
		return p, nil
	}
	p.Active = false
	p.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	if strings.TrimSpace(id) == "" {
		return Product{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListActive(ctx, strings.TrimSpace(query), limit)
}

func (s *Service) SellerProducts(ctx context.Context, sellerID string) ([]Product, error) {
	return s.repo.BySeller(ctx, sellerID)
}

// ParsePrice reads a decimal price from user input.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, ErrInvalidInput
	}
	return d, nil
}
