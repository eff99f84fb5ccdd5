// AngelaMos | 2026
// repository.go

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelamos/digitalstore/internal/core"
)

type Repository interface {
	CreateCategory(ctx context.Context, category *Category) error
	GetCategoryByID(ctx context.Context, id string) (*Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*Category, error)
	UpdateCategory(ctx context.Context, category *Category) error
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]Category, error)

	CreateProduct(ctx context.Context, product *Product) error
	GetProductByID(ctx context.Context, id string) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	UpdateProduct(ctx context.Context, product *Product) error
	SetProductActive(ctx context.Context, id string, active bool) error
	ListProducts(
		ctx context.Context,
		params ListProductsParams,
	) ([]Product, int, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]Product, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const productColumns = `
	id, category_id, name, slug, description, price_cents,
	file_path, file_name, file_size, version, download_limit,
	is_active, created_at, updated_at`

func (r *repository) CreateCategory(
	ctx context.Context,
	category *Category,
) error {
	query := `
		INSERT INTO categories (id, name, slug, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, category, query,
		category.ID,
		category.Name,
		category.Slug,
		category.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create category: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create category: %w", err)
	}

	return nil
}

func (r *repository) GetCategoryByID(
	ctx context.Context,
	id string,
) (*Category, error) {
	query := `
		SELECT id, name, slug, description, created_at, updated_at
		FROM categories
		WHERE id = $1`

	var category Category
	err := r.db.GetContext(ctx, &category, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	return &category, nil
}

func (r *repository) GetCategoryBySlug(
	ctx context.Context,
	slug string,
) (*Category, error) {
	query := `
		SELECT id, name, slug, description, created_at, updated_at
		FROM categories
		WHERE slug = $1`

	var category Category
	err := r.db.GetContext(ctx, &category, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category by slug: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category by slug: %w", err)
	}

	return &category, nil
}

func (r *repository) UpdateCategory(
	ctx context.Context,
	category *Category,
) error {
	query := `
		UPDATE categories
		SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &category.UpdatedAt, query,
		category.ID,
		category.Name,
		category.Description,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update category: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}

	return nil
}

func (r *repository) DeleteCategory(ctx context.Context, id string) error {
	// Products keep a SET NULL foreign key, so deleting a category
	// detaches its products rather than removing them.
	query := `DELETE FROM categories WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete category: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, name, slug, description, created_at, updated_at
		FROM categories
		ORDER BY name ASC`

	var categories []Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return categories, nil
}

func (r *repository) CreateProduct(
	ctx context.Context,
	product *Product,
) error {
	query := `
		INSERT INTO products (
			id, category_id, name, slug, description, price_cents,
			file_path, file_name, file_size, version, download_limit
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING is_active, created_at, updated_at`

	err := r.db.GetContext(ctx, product, query,
		product.ID,
		product.CategoryID,
		product.Name,
		product.Slug,
		product.Description,
		product.PriceCents,
		product.FilePath,
		product.FileName,
		product.FileSize,
		product.Version,
		product.DownloadLimit,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create product: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

func (r *repository) GetProductByID(
	ctx context.Context,
	id string,
) (*Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE id = $1`, productColumns)

	var product Product
	err := r.db.GetContext(ctx, &product, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get product: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &product, nil
}

func (r *repository) GetProductBySlug(
	ctx context.Context,
	slug string,
) (*Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE slug = $1`, productColumns)

	var product Product
	err := r.db.GetContext(ctx, &product, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get product by slug: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}

	return &product, nil
}

func (r *repository) UpdateProduct(
	ctx context.Context,
	product *Product,
) error {
	query := `
		UPDATE products
		SET category_id = $2, name = $3, description = $4, price_cents = $5,
		    file_path = $6, file_name = $7, file_size = $8, version = $9,
		    download_limit = $10, is_active = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &product.UpdatedAt, query,
		product.ID,
		product.CategoryID,
		product.Name,
		product.Description,
		product.PriceCents,
		product.FilePath,
		product.FileName,
		product.FileSize,
		product.Version,
		product.DownloadLimit,
		product.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update product: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	return nil
}

func (r *repository) SetProductActive(
	ctx context.Context,
	id string,
	active bool,
) error {
	query := `
		UPDATE products
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set product active: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set product active: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set product active: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ListProducts(
	ctx context.Context,
	params ListProductsParams,
) ([]Product, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if !params.IncludeInactive {
		conditions = append(conditions, "p.is_active")
	}

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(p.name ILIKE $%d OR p.description ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.CategorySlug != "" {
		conditions = append(conditions, fmt.Sprintf(
			`p.category_id = (SELECT id FROM categories WHERE slug = $%d)`,
			argIdx))
		args = append(args, params.CategorySlug)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM products p WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.category_id, p.name, p.slug, p.description,
		       p.price_cents, p.file_path, p.file_name, p.file_size,
		       p.version, p.download_limit, p.is_active,
		       p.created_at, p.updated_at
		FROM products p
		WHERE %s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var products []Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

func (r *repository) GetProductsByIDs(
	ctx context.Context,
	ids []string,
) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE id = ANY($1)`, productColumns)

	var products []Product
	if err := r.db.SelectContext(ctx, &products, query, ids); err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}

	return products, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
