// internal/domain/inventory/validator.go
package inventory

import (
	"fmt"

	"github.com/your-org/storefront-backend/internal/domain/product"
	"gorm.io/gorm"
)

// ValidationCode classifies why a requested line cannot be fulfilled
type ValidationCode string

const (
	CodeProductNotFound   ValidationCode = "PRODUCT_NOT_FOUND"
	CodeProductInactive   ValidationCode = "PRODUCT_INACTIVE"
	CodeInsufficientStock ValidationCode = "INSUFFICIENT_STOCK"
)

// ValidationError reports the first line that failed stock validation
type ValidationError struct {
	Code        ValidationCode
	ProductName string
	Requested   int
	Available   int
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeProductNotFound:
		return "product not found"
	case CodeProductInactive:
		return fmt.Sprintf("product %q is not available for sale", e.ProductName)
	case CodeInsufficientStock:
		return fmt.Sprintf("insufficient stock for %q (requested: %d, available: %d)",
			e.ProductName, e.Requested, e.Available)
	default:
		return "stock validation failed"
	}
}

// Line is one (product, requested quantity) pair to validate
type Line struct {
	ProductID uint
	Quantity  int
}

// Validator checks requested quantities against current catalog state.
//
// The check is an advisory read with no locking: it narrows the window for
// oversubscription but the authoritative check is the guarded decrement run
// inside the order transaction.
type Validator struct {
	db *gorm.DB
}

// NewValidator creates a new stock validator
func NewValidator(db *gorm.DB) *Validator {
	return &Validator{db: db}
}

// ValidateStock confirms each line's product exists, is active, and has
// sufficient stock. Returns a *ValidationError for the first violation,
// before any write happens anywhere.
func (v *Validator) ValidateStock(lines []Line) error {
	for _, line := range lines {
		var prod product.Product
		result := v.db.Select("id", "name", "stock_quantity", "is_active").
			Where("id = ?", line.ProductID).
			First(&prod)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				return &ValidationError{Code: CodeProductNotFound, Requested: line.Quantity}
			}
			return fmt.Errorf("failed to look up product %d: %w", line.ProductID, result.Error)
		}

		if !prod.IsActive {
			return &ValidationError{
				Code:        CodeProductInactive,
				ProductName: prod.Name,
				Requested:   line.Quantity,
			}
		}

		if prod.StockQuantity < line.Quantity {
			return &ValidationError{
				Code:        CodeInsufficientStock,
				ProductName: prod.Name,
				Requested:   line.Quantity,
				Available:   prod.StockQuantity,
			}
		}
	}

	return nil
}
