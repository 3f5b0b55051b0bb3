package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryAlreadyExists = errors.New("category with this name already exists")
	ErrCategoryInUse         = errors.New("category still has products")
)

// CategoryRepository persists catalog categories
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Category, error)
}

type categoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

const categoryColumns = `id, name, slug, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*domain.Category, error) {
	c := &domain.Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func categoryWriteError(op string, err error) error {
	if isUniqueViolation(err, "categories_name_key") || isUniqueViolation(err, "categories_slug_key") {
		return ErrCategoryAlreadyExists
	}
	return fmt.Errorf("failed to %s category: %w", op, err)
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		category.ID, category.Name, category.Slug, category.CreatedAt, category.UpdatedAt,
	)
	if err != nil {
		return categoryWriteError("create", err)
	}
	return nil
}

// Update renames a category and refreshes its slug
func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE categories SET name = $2, slug = $3, updated_at = $4
		WHERE id = $1
		RETURNING created_at`,
		category.ID, category.Name, category.Slug, category.UpdatedAt,
	).Scan(&category.CreatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrCategoryNotFound
	case err != nil:
		return categoryWriteError("update", err)
	}
	return nil
}

// Delete removes a category and returns the deleted row. Categories that
// still own products are kept and ErrCategoryInUse is returned.
func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := scanCategory(r.db.QueryRowContext(ctx,
		`DELETE FROM categories WHERE id = $1 RETURNING `+categoryColumns, id))

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrCategoryNotFound
	case isForeignKeyViolation(err, "fk_products_category"):
		return nil, ErrCategoryInUse
	case err != nil:
		return nil, fmt.Errorf("failed to delete category: %w", err)
	}
	return category, nil
}

// List returns every category ordered by name
func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return collect(rows, scanCategory)
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return r.findOne(ctx, "id", id)
}

func (r *categoryRepository) FindBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return r.findOne(ctx, "slug", slug)
}

func (r *categoryRepository) findOne(ctx context.Context, column string, value any) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE %s = $1`, categoryColumns, column)

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, value))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrCategoryNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to find category by %s: %w", column, err)
	}
	return category, nil
}
