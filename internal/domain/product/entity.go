// internal/domain/product/entity.go
package product

import (
	"time"

	"gorm.io/gorm"
)

// Product represents the product entity. It is the canonical source of truth
// for price and availability at order time; client-supplied or cached values
// are never trusted for either.
type Product struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"not null;size:255" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Price         int64          `gorm:"not null" json:"price"` // Smallest currency unit
	Category      string         `gorm:"size:100;index" json:"category"`
	ImageURL      string         `gorm:"size:500" json:"image_url"`
	StockQuantity int            `gorm:"not null;default:0" json:"stock_quantity"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Product) TableName() string {
	return "products"
}

// IsInStock checks whether any stock remains
func (p *Product) IsInStock() bool {
	return p.StockQuantity > 0
}

// IsAvailable checks whether the product can currently be sold
func (p *Product) IsAvailable() bool {
	return p.IsActive && p.IsInStock()
}

// GetFormattedPrice returns the price as a float
func (p *Product) GetFormattedPrice() float64 {
	return float64(p.Price) / 100
}
