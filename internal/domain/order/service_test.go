package order

import (
	"errors"
	"io"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testOwner = "user_2abc"

var testAddress = ShippingAddress{
	RecipientName: "김민수",
	Phone:         "010-1234-5678",
	PostalCode:    "06236",
	Address:       "서울특별시 강남구 테헤란로 123",
	DetailAddress: "456호",
}

func setupTestService(t *testing.T) (*Service, *cart.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&product.Product{}, &cart.CartItem{}, &Order{}, &OrderItem{},
	))

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{}
	cartService := cart.NewService(db, cfg)
	return NewService(db, cfg, log, cartService), cartService, db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price int64, stock int) *product.Product {
	t.Helper()

	p := &product.Product{
		Name:          name,
		Price:         price,
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func addToCart(t *testing.T, cartService *cart.Service, productID uint, quantity int) {
	t.Helper()
	_, err := cartService.AddToCart(testOwner, &cart.AddToCartRequest{
		ProductID: productID,
		Quantity:  quantity,
	})
	require.NoError(t, err)
}

func stockOf(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var p product.Product
	require.NoError(t, db.First(&p, productID).Error)
	return p.StockQuantity
}

func TestCreateOrder_HappyPath(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p1 := seedProduct(t, db, "원두 커피", 28000, 10)
	p2 := seedProduct(t, db, "드립 세트", 45000, 5)

	addToCart(t, cartService, p1.ID, 2)
	addToCart(t, cartService, p2.ID, 1)

	o, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	require.NoError(t, err)

	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Equal(t, int64(2*28000+45000), o.TotalAmount)
	assert.Equal(t, testOwner, o.OwnerID)
	require.Len(t, o.Items, 2)

	// Item snapshots carry name and unit price at order time
	for _, item := range o.Items {
		switch item.ProductID {
		case p1.ID:
			assert.Equal(t, "원두 커피", item.ProductName)
			assert.Equal(t, int64(28000), item.Price)
			assert.Equal(t, int64(56000), item.TotalPrice)
		case p2.ID:
			assert.Equal(t, "드립 세트", item.ProductName)
			assert.Equal(t, int64(45000), item.Price)
		default:
			t.Fatalf("unexpected product in order: %d", item.ProductID)
		}
	}

	// Stock decremented by exactly the ordered quantity
	assert.Equal(t, 8, stockOf(t, db, p1.ID))
	assert.Equal(t, 4, stockOf(t, db, p2.ID))

	// Cart cleared after commit
	cartResp, err := cartService.GetCart(testOwner)
	require.NoError(t, err)
	assert.Empty(t, cartResp.Items)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	svc, _, _ := setupTestService(t)

	_, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrder_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 5)

	addToCart(t, cartService, p.ID, 5)

	// Someone else buys most of the stock before this order runs
	require.NoError(t, db.Model(&product.Product{}).
		Where("id = ?", p.ID).
		Update("stock_quantity", 2).Error)

	_, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})

	var vErr *inventory.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, inventory.CodeInsufficientStock, vErr.Code)

	// No order rows, stock untouched, cart intact
	var orderCount int64
	db.Model(&Order{}).Count(&orderCount)
	assert.Equal(t, int64(0), orderCount)

	assert.Equal(t, 2, stockOf(t, db, p.ID))

	cartResp, err := cartService.GetCart(testOwner)
	require.NoError(t, err)
	assert.Len(t, cartResp.Items, 1)
}

func TestCreateOrder_ItemInsertFailureRollsBackHeader(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	addToCart(t, cartService, p.ID, 2)

	// Break the item insert after validation passes
	require.NoError(t, db.Migrator().DropTable(&OrderItem{}))

	_, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})

	var pErr *PersistError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, StageOrderItem, pErr.Stage)
	assert.Equal(t, "원두 커피", pErr.ProductName)

	// The already-written header was rolled back with it
	var orderCount int64
	db.Model(&Order{}).Count(&orderCount)
	assert.Equal(t, int64(0), orderCount)

	// No decrement ran, the cart is untouched
	assert.Equal(t, 10, stockOf(t, db, p.ID))

	cartResp, err := cartService.GetCart(testOwner)
	require.NoError(t, err)
	assert.Len(t, cartResp.Items, 1)
}

func TestCreateOrder_ConcurrentStockDrainRollsBackEverything(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	addToCart(t, cartService, p.ID, 2)

	// A concurrent sale empties the shelf between the advisory validation
	// and the decrement: drain stock the moment the item row is written,
	// inside the same transaction.
	err := db.Callback().Create().After("gorm:create").Register("test_drain_stock", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*OrderItem); ok {
			tx.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE products SET stock_quantity = 0 WHERE id = ?", p.ID)
		}
	})
	require.NoError(t, err)
	defer db.Callback().Create().Remove("test_drain_stock")

	_, err = svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})

	// The guard refused the decrement instead of driving stock negative
	var pErr *PersistError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, StageStockDecrement, pErr.Stage)

	// Rollback undid the header, the item, and the mid-transaction drain
	var orderCount, itemCount int64
	db.Model(&Order{}).Count(&orderCount)
	db.Model(&OrderItem{}).Count(&itemCount)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, int64(0), itemCount)
	assert.Equal(t, 10, stockOf(t, db, p.ID))

	cartResp, err := cartService.GetCart(testOwner)
	require.NoError(t, err)
	assert.Len(t, cartResp.Items, 1)
}

func TestCreateOrder_ReloadFailureStillReturnsOrder(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	addToCart(t, cartService, p.ID, 2)

	// Fail the post-commit reload only; the transaction itself succeeds
	failReload := false
	err := db.Callback().Query().Before("gorm:query").Register("test_fail_order_reload", func(tx *gorm.DB) {
		if !failReload {
			return
		}
		if _, ok := tx.Statement.Dest.(*Order); ok {
			tx.AddError(errors.New("driver: bad connection"))
		}
	})
	require.NoError(t, err)
	defer db.Callback().Query().Remove("test_fail_order_reload")

	failReload = true
	o, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	failReload = false

	// The committed order is returned from memory, not reported as a failure
	require.NoError(t, err)
	require.NotZero(t, o.ID)
	assert.Equal(t, int64(56000), o.TotalAmount)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "원두 커피", o.Items[0].ProductName)

	// The commit really happened: stock decremented, cart cleared
	assert.Equal(t, 8, stockOf(t, db, p.ID))

	cartResp, err := cartService.GetCart(testOwner)
	require.NoError(t, err)
	assert.Empty(t, cartResp.Items)

	got, err := svc.GetOrder(testOwner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestCreateOrder_ExactStockBoundary(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "드립 세트", 45000, 3)

	addToCart(t, cartService, p.ID, 3)

	o, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	require.NoError(t, err)

	assert.Equal(t, int64(135000), o.TotalAmount)
	assert.Equal(t, 0, stockOf(t, db, p.ID))
}

func TestCreateOrder_PriceChangeAfterAddIsHonored(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "텀블러", 19000, 10)

	addToCart(t, cartService, p.ID, 1)

	// Catalog price changes while the item sits in the cart
	require.NoError(t, db.Model(&product.Product{}).
		Where("id = ?", p.ID).
		Update("price", 21000).Error)

	o, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	require.NoError(t, err)

	// The order charges the current price, not the add-time price
	assert.Equal(t, int64(21000), o.TotalAmount)
	assert.Equal(t, int64(21000), o.Items[0].Price)
}

func TestGetOrder_OwnerScoped(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	addToCart(t, cartService, p.ID, 1)
	o, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	require.NoError(t, err)

	got, err := svc.GetOrder(testOwner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.GetOrder("user_other", o.ID)
	assert.Error(t, err)
}

func TestGetUserOrders_Pagination(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 100)

	for i := 0; i < 3; i++ {
		addToCart(t, cartService, p.ID, 1)
		_, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
		require.NoError(t, err)
	}

	resp, err := svc.GetUserOrders(testOwner, &OrderListRequest{Page: 1, Limit: 2})
	require.NoError(t, err)

	assert.Len(t, resp.Orders, 2)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasNext)
	assert.False(t, resp.Pagination.HasPrev)
}

func TestUpdateOrderStatus_Transitions(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	addToCart(t, cartService, p.ID, 1)
	o, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	require.NoError(t, err)

	// pending -> confirmed is allowed
	require.NoError(t, svc.UpdateOrderStatus(o.ID, OrderStatusConfirmed))

	got, err := svc.GetOrder(testOwner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusConfirmed, got.Status)

	// confirmed -> pending is not
	assert.Error(t, svc.UpdateOrderStatus(o.ID, OrderStatusPending))

	// delivered requires shipped first
	assert.Error(t, svc.UpdateOrderStatus(o.ID, OrderStatusDelivered))
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	addToCart(t, cartService, p.ID, 4)
	o, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	require.NoError(t, err)
	require.Equal(t, 6, stockOf(t, db, p.ID))

	require.NoError(t, svc.CancelOrder(testOwner, o.ID))

	assert.Equal(t, 10, stockOf(t, db, p.ID))

	got, err := svc.GetOrder(testOwner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, got.Status)
}

func TestCancelOrder_RejectedAfterShipping(t *testing.T) {
	svc, cartService, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	addToCart(t, cartService, p.ID, 1)
	o, err := svc.CreateOrder(testOwner, &CreateOrderRequest{ShippingAddress: testAddress})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateOrderStatus(o.ID, OrderStatusConfirmed))
	require.NoError(t, svc.UpdateOrderStatus(o.ID, OrderStatusShipped))

	assert.Error(t, svc.CancelOrder(testOwner, o.ID))
}
