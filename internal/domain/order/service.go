// internal/domain/order/service.go
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"gorm.io/gorm"
)

// ErrEmptyCart is returned when order creation finds no cart lines
var ErrEmptyCart = errors.New("cart is empty")

// PersistStage identifies the write that failed during order creation
type PersistStage string

const (
	StageOrder          PersistStage = "order"
	StageOrderItem      PersistStage = "order_item"
	StageStockDecrement PersistStage = "stock_decrement"
)

// PersistError reports a write failure inside the order transaction. By the
// time the caller sees it, the order, its items, and any stock decrements of
// this attempt have been rolled back; the cart is untouched.
type PersistError struct {
	Stage       PersistStage
	ProductName string
	Err         error
}

func (e *PersistError) Error() string {
	switch e.Stage {
	case StageOrder:
		return "failed to create order"
	case StageOrderItem:
		return fmt.Sprintf("failed to create order item for %q", e.ProductName)
	case StageStockDecrement:
		return fmt.Sprintf("failed to decrement stock for %q", e.ProductName)
	default:
		return "failed to persist order"
	}
}

func (e *PersistError) Unwrap() error { return e.Err }

// Service handles order business logic
type Service struct {
	db          *gorm.DB
	config      *config.Config
	logger      *logrus.Logger
	cartService *cart.Service
	validator   *inventory.Validator
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger, cartService *cart.Service) *Service {
	return &Service{
		db:          db,
		config:      cfg,
		logger:      logger,
		cartService: cartService,
		validator:   inventory.NewValidator(db),
	}
}

// CreateOrderRequest represents order creation data
type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address" binding:"required"`
	OrderNote       string          `json:"order_note,omitempty"`
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

// OrderResponse represents order response with pagination
type OrderResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// CreateOrder converts the owner's full cart into an order.
//
// Sequence: load cart lines, re-validate stock against fresh catalog reads,
// compute the total, then in a single database transaction insert the order
// header, insert one order item per line, and decrement each product's stock
// with a guard (stock_quantity >= quantity) so concurrent orders cannot drive
// stock negative. A failure anywhere inside the transaction rolls back the
// order, its items, and every decrement of this attempt — never the cart.
// After commit the cart is cleared; a failure there is logged and tolerated
// because the sale has already been finalized.
func (s *Service) CreateOrder(ownerID string, req *CreateOrderRequest) (*Order, error) {
	// 1. Load cart lines with their product snapshots
	cartResponse, err := s.cartService.GetCart(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	if len(cartResponse.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// 2. Re-validate every line against fresh data. This narrows, but does
	// not close, the race window; the guarded decrement below is the
	// authoritative check.
	lines := make([]inventory.Line, len(cartResponse.Items))
	for i, item := range cartResponse.Items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if err := s.validator.ValidateStock(lines); err != nil {
		return nil, err
	}

	// 3. Compute the total from current catalog prices
	var totalAmount int64
	for _, item := range cartResponse.Items {
		totalAmount += item.Product.Price * int64(item.Quantity)
	}

	// 4-5. Order header, items, and stock decrements in one transaction
	newOrder := Order{
		OwnerID:         ownerID,
		TotalAmount:     totalAmount,
		Status:          OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		OrderNote:       req.OrderNote,
	}

	createdItems := make([]OrderItem, 0, len(cartResponse.Items))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(&newOrder).Error; err != nil {
			return &PersistError{Stage: StageOrder, Err: err}
		}

		for _, item := range cartResponse.Items {
			orderItem := OrderItem{
				OrderID:     newOrder.ID,
				ProductID:   item.ProductID,
				ProductName: item.Product.Name,
				Quantity:    item.Quantity,
				Price:       item.Product.Price,
				TotalPrice:  item.Product.Price * int64(item.Quantity),
			}

			if err := tx.Create(&orderItem).Error; err != nil {
				return &PersistError{
					Stage:       StageOrderItem,
					ProductName: item.Product.Name,
					Err:         err,
				}
			}

			// Guarded decrement: refuses to go below zero even when a
			// concurrent order slipped past the advisory validation.
			result := tx.Model(&product.Product{}).
				Where("id = ? AND stock_quantity >= ?", item.ProductID, item.Quantity).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity))

			if result.Error != nil {
				return &PersistError{
					Stage:       StageStockDecrement,
					ProductName: item.Product.Name,
					Err:         result.Error,
				}
			}
			if result.RowsAffected == 0 {
				return &PersistError{
					Stage:       StageStockDecrement,
					ProductName: item.Product.Name,
					Err:         fmt.Errorf("stock changed concurrently"),
				}
			}

			createdItems = append(createdItems, orderItem)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// 6. Clear the cart. The order is already committed, so a failure here
	// is cosmetic: the stale cart is cleaned up on next view.
	if err := s.cartService.ClearCart(ownerID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"owner_id": ownerID,
			"order_id": newOrder.ID,
			"error":    err.Error(),
		}).Warn("order created but cart could not be cleared")
	}

	// Reload the committed order with its items. The order is durable at
	// this point; if the read fails, serve the in-memory copy rather than
	// report a failure for an order that exists.
	if err := s.db.Preload("Items").First(&newOrder, newOrder.ID).Error; err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id": newOrder.ID,
			"error":    err.Error(),
		}).Warn("order committed but could not be reloaded")
		newOrder.Items = createdItems
	}

	return &newOrder, nil
}

// GetOrder retrieves a single order owned by ownerID
func (s *Service) GetOrder(ownerID string, id uint) (*Order, error) {
	var o Order
	result := s.db.Preload("Items").
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&o)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order not found")
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}

	return &o, nil
}

// GetUserOrders retrieves orders for an owner, newest first, with pagination
func (s *Service) GetUserOrders(ownerID string, req *OrderListRequest) (*OrderResponse, error) {
	var orders []Order
	var total int64

	query := s.db.Model(&Order{}).Where("owner_id = ?", ownerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	err := query.Preload("Items").
		Order("created_at DESC").
		Offset(offset).Limit(req.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	pagination := Pagination{
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
		HasPrev:    req.Page > 1,
	}

	return &OrderResponse{
		Orders:     orders,
		Pagination: pagination,
	}, nil
}

// UpdateOrderStatus updates order status after validating the transition
func (s *Service) UpdateOrderStatus(orderID uint, status OrderStatus) error {
	var o Order
	if err := s.db.First(&o, orderID).Error; err != nil {
		return fmt.Errorf("order not found: %w", err)
	}

	if !s.isValidStatusTransition(o.Status, status) {
		return fmt.Errorf("invalid status transition from %s to %s", o.Status, status)
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}

	if err := s.db.Model(&o).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return nil
}

// CancelOrder cancels an order and restores the stock it consumed
func (s *Service) CancelOrder(ownerID string, orderID uint) error {
	var o Order
	err := s.db.Where("id = ? AND owner_id = ?", orderID, ownerID).First(&o).Error
	if err != nil {
		return fmt.Errorf("order not found: %w", err)
	}

	if !o.CanBeCancelled() {
		return fmt.Errorf("order cannot be cancelled in current status: %s", o.Status)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var orderItems []OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&orderItems).Error; err != nil {
			return fmt.Errorf("failed to get order items: %w", err)
		}

		for _, item := range orderItems {
			result := tx.Model(&product.Product{}).
				Where("id = ?", item.ProductID).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity))
			if result.Error != nil {
				return fmt.Errorf("failed to restore stock for %q: %w", item.ProductName, result.Error)
			}
		}

		if err := tx.Model(&o).Update("status", OrderStatusCancelled).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		return nil
	})
}

func (s *Service) isValidStatusTransition(from, to OrderStatus) bool {
	validTransitions := map[OrderStatus][]OrderStatus{
		OrderStatusPending: {
			OrderStatusConfirmed,
			OrderStatusCancelled,
		},
		OrderStatusConfirmed: {
			OrderStatusShipped,
			OrderStatusCancelled,
		},
		OrderStatusShipped: {
			OrderStatusDelivered,
		},
	}

	allowedStatuses, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, status := range allowedStatuses {
		if status == to {
			return true
		}
	}
	return false
}
