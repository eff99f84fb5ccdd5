// AngelaMos | 2026
// service.go

package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelamos/digitalstore/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateCategory(
	ctx context.Context,
	req CreateCategoryRequest,
) (*Category, error) {
	category := &Category{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

func (s *Service) UpdateCategory(
	ctx context.Context,
	id string,
	req UpdateCategoryRequest,
) (*Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = *req.Description
	}

	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.repo.DeleteCategory(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateProduct(
	ctx context.Context,
	req CreateProductRequest,
) (*Product, error) {
	if req.CategoryID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *req.CategoryID); err != nil {
			return nil, fmt.Errorf("resolve category: %w", err)
		}
	}

	downloadLimit := req.DownloadLimit
	if downloadLimit == 0 {
		downloadLimit = 5
	}

	product := &Product{
		ID:            uuid.New().String(),
		CategoryID:    req.CategoryID,
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		PriceCents:    req.PriceCents,
		FilePath:      req.FilePath,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		Version:       req.Version,
		DownloadLimit: downloadLimit,
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *Service) UpdateProduct(
	ctx context.Context,
	id string,
	req UpdateProductRequest,
) (*Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		if _, err := s.repo.GetCategoryByID(ctx, *req.CategoryID); err != nil {
			return nil, fmt.Errorf("resolve category: %w", err)
		}
		product.CategoryID = req.CategoryID
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.FilePath != nil {
		product.FilePath = *req.FilePath
	}
	if req.FileName != nil {
		product.FileName = *req.FileName
	}
	if req.FileSize != nil {
		product.FileSize = *req.FileSize
	}
	if req.Version != nil {
		product.Version = *req.Version
	}
	if req.DownloadLimit != nil {
		product.DownloadLimit = *req.DownloadLimit
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// DeactivateProduct hides a product from the public catalog. Existing
// purchases and their entitlements are unaffected.
func (s *Service) DeactivateProduct(ctx context.Context, id string) error {
	return s.repo.SetProductActive(ctx, id, false)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

// GetPublicProduct resolves a product for unauthenticated catalog views,
// hiding inactive products behind a not-found.
func (s *Service) GetPublicProduct(
	ctx context.Context,
	slug string,
) (*Product, error) {
	product, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if !product.IsActive {
		return nil, fmt.Errorf("get product: %w", core.ErrNotFound)
	}

	return product, nil
}

func (s *Service) ListProducts(
	ctx context.Context,
	params ListProductsParams,
) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, params)
}

// GetPurchasableProducts resolves products for cart and checkout flows,
// rejecting unknown or inactive products.
func (s *Service) GetPurchasableProducts(
	ctx context.Context,
	ids []string,
) (map[string]*Product, error) {
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", id, core.ErrNotFound)
		}
		if !product.Purchasable() {
			return nil, fmt.Errorf(
				"product %s is not available: %w",
				id,
				core.ErrInvalidInput,
			)
		}
	}

	return byID, nil
}
