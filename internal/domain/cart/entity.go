// internal/domain/cart/entity.go
package cart

import (
	"time"
)

// CartItem represents one (product, quantity) line in a user's cart.
// A user has at most one row per product; adding the same product again
// increases the quantity instead of creating a duplicate row.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   string    `gorm:"not null;size:255;uniqueIndex:idx_cart_owner_product" json:"owner_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_owner_product" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// CartTotals represents calculated cart totals
type CartTotals struct {
	ItemCount     int   `json:"item_count"`     // Number of unique items
	TotalQuantity int   `json:"total_quantity"` // Sum of all quantities
	TotalAmount   int64 `json:"total_amount"`   // Sum of unit price * quantity
}
