package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// MaxPhotoSize is the largest accepted product photo in bytes
	MaxPhotoSize = 1 << 20

	LatestProductsLimit = 12
	ProductsPerPage     = 6
	RelatedProductLimit = 3
)

var (
	ErrPhotoTooLarge    = errors.New("photo must be smaller than 1MB")
	ErrUnsupportedPhoto = errors.New("photo must be an image")
	ErrInvalidPrice     = errors.New("price must not be negative")
	ErrInvalidQuantity  = errors.New("quantity must not be negative")
)

// ProductInput carries the fields of a product form. Photo is optional; on
// update a nil Photo keeps the stored one.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  uuid.UUID
	Quantity    int
	Shipping    bool
	Photo       []byte
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	Create(ctx context.Context, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Latest(ctx context.Context) ([]*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	Photo(ctx context.Context, id uuid.UUID) (*domain.Photo, error)
	Filter(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	Count(ctx context.Context) (int, error)
	Page(ctx context.Context, page int) ([]*domain.Product, error)
	Search(ctx context.Context, keyword string) ([]*domain.Product, error)
	Related(ctx context.Context, productID, categoryID uuid.UUID) ([]*domain.Product, error)
	ByCategory(ctx context.Context, categorySlug string) (*domain.Category, []*domain.Product, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

// DetectPhoto validates an uploaded photo and returns it with its content type
func DetectPhoto(data []byte) (*domain.Photo, error) {
	if len(data) > MaxPhotoSize {
		return nil, ErrPhotoTooLarge
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, ErrUnsupportedPhoto
	}

	return &domain.Photo{Data: data, ContentType: mtype.String()}, nil
}

func (s *productService) build(product *domain.Product, input ProductInput) error {
	name := strings.TrimSpace(input.Name)
	productSlug, err := makeSlug(name)
	if err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if input.Quantity < 0 {
		return ErrInvalidQuantity
	}

	product.Name = name
	product.Slug = productSlug
	product.Description = strings.TrimSpace(input.Description)
	product.Price = input.Price.Round(2)
	product.CategoryID = input.CategoryID
	product.Quantity = input.Quantity
	product.Shipping = input.Shipping
	product.Photo = nil

	if len(input.Photo) > 0 {
		photo, err := DetectPhoto(input.Photo)
		if err != nil {
			return err
		}
		product.Photo = photo
	}

	return nil
}

func (s *productService) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	now := time.Now()
	product := &domain.Product{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.build(product, input); err != nil {
		return nil, err
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	product := &domain.Product{ID: id, UpdatedAt: time.Now()}
	if err := s.build(product, input); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// Latest returns the newest products for the home page
func (s *productService) Latest(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.productRepo.List(ctx, 1, LatestProductsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *productService) GetBySlug(ctx context.Context, productSlug string) (*domain.Product, error) {
	product, err := s.productRepo.FindBySlug(ctx, productSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *productService) Photo(ctx context.Context, id uuid.UUID) (*domain.Photo, error) {
	photo, err := s.productRepo.Photo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product photo: %w", err)
	}
	return photo, nil
}

func (s *productService) Filter(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	products, err := s.productRepo.Filter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to filter products: %w", err)
	}
	return products, nil
}

func (s *productService) Count(ctx context.Context) (int, error) {
	total, err := s.productRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// Page returns one page of the catalog; pages start at 1
func (s *productService) Page(ctx context.Context, page int) ([]*domain.Product, error) {
	if page < 1 {
		page = 1
	}
	products, err := s.productRepo.List(ctx, page, ProductsPerPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *productService) Search(ctx context.Context, keyword string) ([]*domain.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []*domain.Product{}, nil
	}

	products, err := s.productRepo.Search(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

func (s *productService) Related(ctx context.Context, productID, categoryID uuid.UUID) ([]*domain.Product, error) {
	products, err := s.productRepo.Related(ctx, productID, categoryID, RelatedProductLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list related products: %w", err)
	}
	return products, nil
}

func (s *productService) ByCategory(ctx context.Context, categorySlug string) (*domain.Category, []*domain.Product, error) {
	category, err := s.categoryRepo.FindBySlug(ctx, categorySlug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get category: %w", err)
	}

	products, err := s.productRepo.ListByCategory(ctx, category.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list category products: %w", err)
	}

	return category, products, nil
}
