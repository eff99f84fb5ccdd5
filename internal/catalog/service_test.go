// AngelaMos | 2026
// service_test.go

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/digitalstore/internal/core"
)

type fakeRepository struct {
	categories map[string]*Category
	products   map[string]*Product
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		categories: make(map[string]*Category),
		products:   make(map[string]*Product),
	}
}

func (f *fakeRepository) CreateCategory(
	_ context.Context,
	category *Category,
) error {
	f.categories[category.ID] = category
	return nil
}

func (f *fakeRepository) GetCategoryByID(
	_ context.Context,
	id string,
) (*Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepository) GetCategoryBySlug(
	_ context.Context,
	slug string,
) (*Category, error) {
	for _, c := range f.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepository) UpdateCategory(
	_ context.Context,
	category *Category,
) error {
	f.categories[category.ID] = category
	return nil
}

func (f *fakeRepository) DeleteCategory(_ context.Context, id string) error {
	delete(f.categories, id)
	return nil
}

func (f *fakeRepository) ListCategories(_ context.Context) ([]Category, error) {
	return nil, nil
}

func (f *fakeRepository) CreateProduct(
	_ context.Context,
	product *Product,
) error {
	product.IsActive = true
	f.products[product.ID] = product
	return nil
}

func (f *fakeRepository) GetProductByID(
	_ context.Context,
	id string,
) (*Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepository) GetProductBySlug(
	_ context.Context,
	slug string,
) (*Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepository) UpdateProduct(
	_ context.Context,
	product *Product,
) error {
	f.products[product.ID] = product
	return nil
}

func (f *fakeRepository) SetProductActive(
	_ context.Context,
	id string,
	active bool,
) error {
	p, ok := f.products[id]
	if !ok {
		return core.ErrNotFound
	}
	p.IsActive = active
	return nil
}

func (f *fakeRepository) ListProducts(
	_ context.Context,
	_ ListProductsParams,
) ([]Product, int, error) {
	return nil, 0, nil
}

func (f *fakeRepository) GetProductsByIDs(
	_ context.Context,
	ids []string,
) ([]Product, error) {
	var result []Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			result = append(result, *p)
		}
	}
	return result, nil
}

func TestGetPurchasableProducts(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepository()
	repo.products["prod-1"] = &Product{
		ID:         "prod-1",
		PriceCents: 4999,
		IsActive:   true,
	}
	repo.products["prod-2"] = &Product{
		ID:         "prod-2",
		PriceCents: 999,
		IsActive:   false,
	}
	svc := NewService(repo)

	t.Run("resolves active priced products", func(t *testing.T) {
		products, err := svc.GetPurchasableProducts(ctx, []string{"prod-1"})
		require.NoError(t, err)

		require.Contains(t, products, "prod-1")
		assert.Equal(t, int64(4999), products["prod-1"].PriceCents)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.GetPurchasableProducts(ctx, []string{"prod-404"})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("inactive product", func(t *testing.T) {
		_, err := svc.GetPurchasableProducts(ctx, []string{"prod-2"})
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("one bad product rejects the whole set", func(t *testing.T) {
		_, err := svc.GetPurchasableProducts(ctx, []string{"prod-1", "prod-2"})
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
}

func TestGetPublicProduct(t *testing.T) {
	ctx := context.Background()

	repo := newFakeRepository()
	repo.products["prod-1"] = &Product{
		ID:       "prod-1",
		Slug:     "editor-pro",
		IsActive: true,
	}
	repo.products["prod-2"] = &Product{
		ID:       "prod-2",
		Slug:     "retired-plugin",
		IsActive: false,
	}
	svc := NewService(repo)

	t.Run("active product resolves by slug", func(t *testing.T) {
		product, err := svc.GetPublicProduct(ctx, "editor-pro")
		require.NoError(t, err)
		assert.Equal(t, "prod-1", product.ID)
	})

	t.Run("inactive product is hidden", func(t *testing.T) {
		_, err := svc.GetPublicProduct(ctx, "retired-plugin")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("download limit defaults", func(t *testing.T) {
		svc := NewService(newFakeRepository())

		product, err := svc.CreateProduct(ctx, CreateProductRequest{
			Name:       "Editor Pro",
			Slug:       "editor-pro",
			PriceCents: 4999,
			FilePath:   "editor-pro.zip",
			FileName:   "editor-pro.zip",
		})
		require.NoError(t, err)
		assert.Equal(t, 5, product.DownloadLimit)
	})

	t.Run("unknown category is rejected", func(t *testing.T) {
		svc := NewService(newFakeRepository())
		missing := "cat-404"

		_, err := svc.CreateProduct(ctx, CreateProductRequest{
			Name:       "Editor Pro",
			Slug:       "editor-pro",
			PriceCents: 4999,
			FilePath:   "editor-pro.zip",
			FileName:   "editor-pro.zip",
			CategoryID: &missing,
		})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}
