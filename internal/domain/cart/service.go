// internal/domain/cart/service.go
package cart

import (
	"fmt"
	"time"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"gorm.io/gorm"
)

// Service handles cart business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new cart service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// CartItemResponse represents a cart item with its product snapshot.
// The product reference is required: rows whose product has disappeared
// are resolved away at this boundary, never inside business logic.
type CartItemResponse struct {
	ID        uint             `json:"id"`
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Product   *product.Product `json:"product"`
	AddedAt   time.Time        `json:"added_at"`
}

// CartResponse represents a shopping cart with items and summary
type CartResponse struct {
	OwnerID string             `json:"owner_id"`
	Items   []CartItemResponse `json:"items"`
	Totals  CartTotals         `json:"totals"`
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest represents update cart item request
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// GetCart retrieves the cart for an owner, newest lines first, with
// current product details joined in
func (s *Service) GetCart(ownerID string) (*CartResponse, error) {
	var dbItems []CartItem
	err := s.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&dbItems).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	items := make([]CartItemResponse, 0, len(dbItems))
	for _, item := range dbItems {
		var prod product.Product
		if err := s.db.Where("id = ?", item.ProductID).First(&prod).Error; err != nil {
			// Product was removed from the catalog; skip the orphan line
			continue
		}

		items = append(items, CartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   &prod,
			AddedAt:   item.CreatedAt,
		})
	}

	return &CartResponse{
		OwnerID: ownerID,
		Items:   items,
		Totals:  s.calculateTotals(items),
	}, nil
}

// AddToCart adds a product to the cart. If the product is already in the
// cart, its quantity is increased instead of creating a duplicate row.
func (s *Service) AddToCart(ownerID string, req *AddToCartRequest) (*CartResponse, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1")
	}

	// Validate product exists and is active
	var prod product.Product
	result := s.db.Where("id = ?", req.ProductID).First(&prod)
	if result.Error != nil {
		return nil, fmt.Errorf("product not found")
	}

	if !prod.IsActive {
		return nil, fmt.Errorf("product %q is not available for sale", prod.Name)
	}

	// Determine the quantity the cart would hold after this add
	var existing CartItem
	currentQuantity := 0
	err := s.db.Where("owner_id = ? AND product_id = ?", ownerID, req.ProductID).
		First(&existing).Error
	if err == nil {
		currentQuantity = existing.Quantity
	} else if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	newQuantity := currentQuantity + req.Quantity
	if newQuantity > prod.StockQuantity {
		return nil, fmt.Errorf("insufficient stock for %q (in stock: %d, in cart: %d)",
			prod.Name, prod.StockQuantity, currentQuantity)
	}

	if currentQuantity == 0 {
		newItem := CartItem{
			OwnerID:   ownerID,
			ProductID: req.ProductID,
			Quantity:  newQuantity,
		}
		if err := s.db.Create(&newItem).Error; err != nil {
			return nil, fmt.Errorf("failed to add item to cart: %w", err)
		}
	} else {
		existing.Quantity = newQuantity
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
	}

	return s.GetCart(ownerID)
}

// UpdateCartItem sets the quantity of a cart line; quantity 0 removes it
func (s *Service) UpdateCartItem(ownerID string, productID uint, req *UpdateCartItemRequest) (*CartResponse, error) {
	if req.Quantity < 0 {
		return nil, fmt.Errorf("quantity cannot be negative")
	}

	if req.Quantity == 0 {
		return s.RemoveFromCart(ownerID, productID)
	}

	var prod product.Product
	if err := s.db.Where("id = ?", productID).First(&prod).Error; err != nil {
		return nil, fmt.Errorf("product not found")
	}

	if req.Quantity > prod.StockQuantity {
		return nil, fmt.Errorf("insufficient stock for %q (in stock: %d)",
			prod.Name, prod.StockQuantity)
	}

	result := s.db.Model(&CartItem{}).
		Where("owner_id = ? AND product_id = ?", ownerID, productID).
		Update("quantity", req.Quantity)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("item not found in cart")
	}

	return s.GetCart(ownerID)
}

// RemoveFromCart removes a product from the cart
func (s *Service) RemoveFromCart(ownerID string, productID uint) (*CartResponse, error) {
	err := s.db.Where("owner_id = ? AND product_id = ?", ownerID, productID).
		Delete(&CartItem{}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}

	return s.GetCart(ownerID)
}

// ClearCart removes all cart lines for an owner
func (s *Service) ClearCart(ownerID string) error {
	return s.db.Where("owner_id = ?", ownerID).Delete(&CartItem{}).Error
}

// GetCartItemCount returns the total quantity held in the cart
func (s *Service) GetCartItemCount(ownerID string) (int, error) {
	cartResponse, err := s.GetCart(ownerID)
	if err != nil {
		return 0, err
	}

	totalItems := 0
	for _, item := range cartResponse.Items {
		totalItems += item.Quantity
	}

	return totalItems, nil
}

func (s *Service) calculateTotals(items []CartItemResponse) CartTotals {
	var totals CartTotals

	totals.ItemCount = len(items)

	for _, item := range items {
		totals.TotalQuantity += item.Quantity
		totals.TotalAmount += item.Product.Price * int64(item.Quantity)
	}

	return totals
}
