package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// ErrNameRequired is returned when a name is blank or has no sluggable characters
var ErrNameRequired = errors.New("name is required")

// CategoryService defines the interface for category business logic
type CategoryService interface {
	Create(ctx context.Context, name string) (*domain.Category, error)
	Update(ctx context.Context, id uuid.UUID, name string) (*domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categoryRepo repository.CategoryRepository) CategoryService {
	return &categoryService{categoryRepo: categoryRepo}
}

// makeSlug derives the URL slug of a display name
func makeSlug(name string) (string, error) {
	s := slug.Make(strings.TrimSpace(name))
	if s == "" {
		return "", ErrNameRequired
	}
	return s, nil
}

func (s *categoryService) Create(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	categorySlug, err := makeSlug(name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	category := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		Slug:      categorySlug,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	categorySlug, err := makeSlug(name)
	if err != nil {
		return nil, err
	}

	category := &domain.Category{
		ID:        id,
		Name:      name,
		Slug:      categorySlug,
		UpdatedAt: time.Now(),
	}

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	return category, nil
}

// Delete removes a category; categories still holding products are refused
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := s.categoryRepo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete category: %w", err)
	}
	return category, nil
}

func (s *categoryService) List(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *categoryService) GetBySlug(ctx context.Context, categorySlug string) (*domain.Category, error) {
	category, err := s.categoryRepo.FindBySlug(ctx, categorySlug)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}
