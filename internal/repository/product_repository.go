package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product with this name already exists")
	ErrPhotoNotFound        = errors.New("product has no photo")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	Photo(ctx context.Context, id uuid.UUID) (*domain.Photo, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.Product, error)
	Count(ctx context.Context) (int, error)
	Filter(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	Search(ctx context.Context, keyword string) ([]*domain.Product, error)
	Related(ctx context.Context, productID, categoryID uuid.UUID, limit int) ([]*domain.Product, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Photo bytes are never selected here; they are served by Photo
const productSelect = `
	SELECT p.id, p.name, p.slug, p.description, p.price, p.category_id, p.quantity,
	       p.shipping, p.photo_data IS NOT NULL, p.created_at, p.updated_at,
	       c.id, c.name, c.slug, c.created_at, c.updated_at
	FROM products p
	JOIN categories c ON c.id = p.category_id
`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	product := &domain.Product{Category: &domain.Category{}}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Slug,
		&product.Description,
		&product.Price,
		&product.CategoryID,
		&product.Quantity,
		&product.Shipping,
		&product.HasPhoto,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Category.ID,
		&product.Category.Name,
		&product.Category.Slug,
		&product.Category.CreatedAt,
		&product.Category.UpdatedAt,
	)
	return product, err
}

func (r *productRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return collect(rows, scanProduct)
}

func productWriteError(op string, err error) error {
	if isUniqueViolation(err, "products_slug_key") {
		return ErrProductAlreadyExists
	}
	if isForeignKeyViolation(err, "fk_products_category") {
		return ErrCategoryNotFound
	}
	return fmt.Errorf("failed to %s product: %w", op, err)
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, slug, description, price, category_id, quantity, shipping,
		                      photo_data, photo_content_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var photoData []byte
	var photoType sql.NullString
	if product.Photo != nil {
		photoData = product.Photo.Data
		photoType = sql.NullString{String: product.Photo.ContentType, Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Slug,
		product.Description,
		product.Price,
		product.CategoryID,
		product.Quantity,
		product.Shipping,
		photoData,
		photoType,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return productWriteError("create", err)
	}

	product.HasPhoto = product.Photo != nil
	return nil
}

// Update updates an existing product. The stored photo is replaced only when
// product.Photo is set.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, slug = $3, description = $4, price = $5, category_id = $6,
		    quantity = $7, shipping = $8, updated_at = $9,
		    photo_data = COALESCE($10, photo_data),
		    photo_content_type = COALESCE($11, photo_content_type)
		WHERE id = $1
		RETURNING created_at, photo_data IS NOT NULL
	`

	var photoData []byte
	var photoType sql.NullString
	if product.Photo != nil {
		photoData = product.Photo.Data
		photoType = sql.NullString{String: product.Photo.ContentType, Valid: true}
	}

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Slug,
		product.Description,
		product.Price,
		product.CategoryID,
		product.Quantity,
		product.Shipping,
		product.UpdatedAt,
		photoData,
		photoType,
	).Scan(&product.CreatedAt, &product.HasPhoto)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return productWriteError("update", err)
	}

	return nil
}

// Delete removes a product from the database using parameterized queries
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindBySlug retrieves a product by its slug
func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, productSelect+` WHERE p.slug = $1`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by slug: %w", err)
	}

	return product, nil
}

// FindByIDs loads a set of products keyed by ID; unknown IDs are simply absent
func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	found := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := productSelect + ` WHERE p.id IN (` + strings.Join(placeholders, ", ") + `)`
	products, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	for _, p := range products {
		found[p.ID] = p
	}
	return found, nil
}

// Photo returns the stored photo of a product
func (r *productRepository) Photo(ctx context.Context, id uuid.UUID) (*domain.Photo, error) {
	query := `SELECT photo_data, photo_content_type FROM products WHERE id = $1`

	var data []byte
	var contentType sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data, &contentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product photo: %w", err)
	}

	if len(data) == 0 {
		return nil, ErrPhotoNotFound
	}

	return &domain.Photo{Data: data, ContentType: contentType.String}, nil
}

// List retrieves one page of products, newest first
func (r *productRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Product, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := productSelect + ` ORDER BY p.created_at DESC LIMIT $1 OFFSET $2`
	return r.query(ctx, query, pageSize, offset)
}

// Count returns the number of products in the catalog
func (r *productRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// Filter retrieves products in any of the given categories and within the price range
func (r *productRepository) Filter(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	var conditions []string
	var args []any

	if len(filter.CategoryIDs) > 0 {
		placeholders := make([]string, len(filter.CategoryIDs))
		for i, id := range filter.CategoryIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, "p.category_id IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.Price.Min != nil {
		args = append(args, *filter.Price.Min)
		conditions = append(conditions, fmt.Sprintf("p.price >= $%d", len(args)))
	}

	if filter.Price.Max != nil {
		args = append(args, *filter.Price.Max)
		conditions = append(conditions, fmt.Sprintf("p.price <= $%d", len(args)))
	}

	query := productSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY p.created_at DESC"

	return r.query(ctx, query, args...)
}

// Search matches the keyword case-insensitively against name and description
func (r *productRepository) Search(ctx context.Context, keyword string) ([]*domain.Product, error) {
	pattern := "%" + escapeLike(keyword) + "%"

	query := productSelect + `
		WHERE p.name ILIKE $1 OR p.description ILIKE $1
		ORDER BY p.created_at DESC
	`
	return r.query(ctx, query, pattern)
}

// Related returns other products of the same category
func (r *productRepository) Related(ctx context.Context, productID, categoryID uuid.UUID, limit int) ([]*domain.Product, error) {
	query := productSelect + `
		WHERE p.category_id = $1 AND p.id <> $2
		ORDER BY p.created_at DESC
		LIMIT $3
	`
	return r.query(ctx, query, categoryID, productID, limit)
}

// ListByCategory returns every product of a category
func (r *productRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	query := productSelect + ` WHERE p.category_id = $1 ORDER BY p.created_at DESC`
	return r.query(ctx, query, categoryID)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
