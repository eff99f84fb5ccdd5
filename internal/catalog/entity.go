// AngelaMos | 2026
// entity.go

package catalog

import (
	"time"
)

type Category struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Product is a digital good. PriceCents is the purchase price in the
// store currency's minor unit. File metadata points at the deliverable
// on disk; DownloadLimit caps how many times a buyer may fetch it.
type Product struct {
	ID            string    `db:"id"`
	CategoryID    *string   `db:"category_id"`
	Name          string    `db:"name"`
	Slug          string    `db:"slug"`
	Description   string    `db:"description"`
	PriceCents    int64     `db:"price_cents"`
	FilePath      string    `db:"file_path"`
	FileName      string    `db:"file_name"`
	FileSize      int64     `db:"file_size"`
	Version       string    `db:"version"`
	DownloadLimit int       `db:"download_limit"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (p *Product) Purchasable() bool {
	return p.IsActive && p.PriceCents > 0
}
