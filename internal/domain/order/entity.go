// internal/domain/order/entity.go
package order

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents the order entity. An order is created in pending status
// together with its items and stock decrements, and moves to confirmed only
// after the payment gateway has approved the matching amount.
type Order struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	OwnerID     string      `gorm:"not null;size:255;index" json:"owner_id"`
	TotalAmount int64       `gorm:"not null" json:"total_amount"`
	Status      OrderStatus `gorm:"not null;default:'pending'" json:"status"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	OrderNote       string          `gorm:"type:text" json:"order_note"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// OrderItem is an immutable historical record of one ordered line. Name and
// price are snapshots taken at order time, independent of later catalog edits.
type OrderItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderID     uint      `gorm:"not null;index" json:"order_id"`
	ProductID   uint      `gorm:"not null;index" json:"product_id"`
	ProductName string    `gorm:"not null;size:255" json:"product_name"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Price       int64     `gorm:"not null" json:"price"`       // Price per unit at order time
	TotalPrice  int64     `gorm:"not null" json:"total_price"` // Quantity * Price
	CreatedAt   time.Time `json:"created_at"`
}

// ShippingAddress represents the delivery destination (embedded in Order)
type ShippingAddress struct {
	RecipientName string `gorm:"size:100" json:"recipient_name" binding:"required"`
	Phone         string `gorm:"size:20" json:"phone" binding:"required"`
	PostalCode    string `gorm:"size:20" json:"postal_code" binding:"required"`
	Address       string `gorm:"size:255" json:"address" binding:"required"`
	DetailAddress string `gorm:"size:255" json:"detail_address"`
}

// TableName overrides
func (Order) TableName() string     { return "orders" }
func (OrderItem) TableName() string { return "order_items" }

// CanBeCancelled checks if order can be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// GetFormattedTotal returns total amount as float
func (o *Order) GetFormattedTotal() float64 {
	return float64(o.TotalAmount) / 100
}
