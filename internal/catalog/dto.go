// AngelaMos | 2026
// dto.go

package catalog

import (
	"time"
)

type CreateCategoryRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=100"`
	Slug        string `json:"slug"        validate:"required,min=1,max=100,slug"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type CategoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateProductRequest struct {
	CategoryID    *string `json:"category_id,omitempty" validate:"omitempty,uuid4"`
	Name          string  `json:"name"           validate:"required,min=1,max=200"`
	Slug          string  `json:"slug"           validate:"required,min=1,max=200,slug"`
	Description   string  `json:"description"    validate:"omitempty,max=10000"`
	PriceCents    int64   `json:"price_cents"    validate:"required,gt=0"`
	FilePath      string  `json:"file_path"      validate:"required,max=500"`
	FileName      string  `json:"file_name"      validate:"required,max=255"`
	FileSize      int64   `json:"file_size"      validate:"gte=0"`
	Version       string  `json:"version"        validate:"omitempty,max=50"`
	DownloadLimit int     `json:"download_limit" validate:"gte=1,lte=100"`
}

type UpdateProductRequest struct {
	CategoryID    *string `json:"category_id,omitempty"    validate:"omitempty,uuid4"`
	Name          *string `json:"name,omitempty"           validate:"omitempty,min=1,max=200"`
	Description   *string `json:"description,omitempty"    validate:"omitempty,max=10000"`
	PriceCents    *int64  `json:"price_cents,omitempty"    validate:"omitempty,gt=0"`
	FilePath      *string `json:"file_path,omitempty"      validate:"omitempty,max=500"`
	FileName      *string `json:"file_name,omitempty"      validate:"omitempty,max=255"`
	FileSize      *int64  `json:"file_size,omitempty"      validate:"omitempty,gte=0"`
	Version       *string `json:"version,omitempty"        validate:"omitempty,max=50"`
	DownloadLimit *int    `json:"download_limit,omitempty" validate:"omitempty,gte=1,lte=100"`
	IsActive      *bool   `json:"is_active,omitempty"`
}

type ProductResponse struct {
	ID            string  `json:"id"`
	CategoryID    *string `json:"category_id,omitempty"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Description   string  `json:"description"`
	PriceCents    int64   `json:"price_cents"`
	FileName      string  `json:"file_name"`
	FileSize      int64   `json:"file_size"`
	Version       string  `json:"version"`
	DownloadLimit int     `json:"download_limit"`
	IsActive      bool    `json:"is_active"`
}

type ListProductsParams struct {
	Page         int
	PageSize     int
	Search       string
	CategorySlug string
	// IncludeInactive is only honored for admin callers.
	IncludeInactive bool
}

func (p *ListProductsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListProductsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToCategoryResponse(c *Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

func ToProductResponse(p *Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		PriceCents:    p.PriceCents,
		FileName:      p.FileName,
		FileSize:      p.FileSize,
		Version:       p.Version,
		DownloadLimit: p.DownloadLimit,
		IsActive:      p.IsActive,
	}
}

func ToProductResponseList(products []Product) []ProductResponse {
	responses := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		responses = append(responses, ToProductResponse(&p))
	}
	return responses
}
