package cart

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testOwner = "user_2abc"

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&product.Product{}, &CartItem{}))

	return NewService(db, &config.Config{}), db
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

func TestAddToCart_NewItem(t *testing.T) {
	svc, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	resp, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.Items[0].Quantity)
	assert.Equal(t, int64(56000), resp.Totals.TotalAmount)
}

func TestAddToCart_ExistingItemIncrementsQuantity(t *testing.T) {
	svc, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	resp, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)

	// One row, merged quantity
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 5, resp.Items[0].Quantity)

	var count int64
	db.Model(&CartItem{}).Where("owner_id = ?", testOwner).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAddToCart_MergedQuantityExceedsStock(t *testing.T) {
	svc, db := setupTestService(t)
	p := seedProduct(t, db, "드립 세트", 45000, 5)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 4})
	require.NoError(t, err)

	_, err = svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	assert.Error(t, err)
}

func TestAddToCart_InactiveProduct(t *testing.T) {
	svc, db := setupTestService(t)
	p := &product.Product{Name: "판매 종료 상품", Price: 1000, StockQuantity: 5, IsActive: false}
	require.NoError(t, db.Create(p).Error)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 1})
	assert.Error(t, err)
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: 404, Quantity: 1})
	assert.Error(t, err)
}

func TestUpdateCartItem_SetQuantity(t *testing.T) {
	svc, db := setupTestService(t)
	p := seedProduct(t, db, "텀블러", 19000, 10)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	resp, err := svc.UpdateCartItem(testOwner, p.ID, &UpdateCartItemRequest{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Items[0].Quantity)
}

func TestUpdateCartItem_ZeroRemovesLine(t *testing.T) {
	svc, db := setupTestService(t)
	p := seedProduct(t, db, "텀블러", 19000, 10)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	resp, err := svc.UpdateCartItem(testOwner, p.ID, &UpdateCartItemRequest{Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestUpdateCartItem_NotInCart(t *testing.T) {
	svc, db := setupTestService(t)
	p := seedProduct(t, db, "텀블러", 19000, 10)

	_, err := svc.UpdateCartItem(testOwner, p.ID, &UpdateCartItemRequest{Quantity: 1})
	assert.Error(t, err)
}

func TestGetCart_SkipsOrphanedLines(t *testing.T) {
	svc, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	// Remove the product from the catalog entirely
	require.NoError(t, db.Unscoped().Delete(&product.Product{}, p.ID).Error)

	resp, err := svc.GetCart(testOwner)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, int64(0), resp.Totals.TotalAmount)
}

func TestClearCart(t *testing.T) {
	svc, db := setupTestService(t)
	p1 := seedProduct(t, db, "원두 커피", 28000, 10)
	p2 := seedProduct(t, db, "드립 세트", 45000, 10)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p1.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p2.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, svc.ClearCart(testOwner))

	resp, err := svc.GetCart(testOwner)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestClearCart_OnlyTouchesOwner(t *testing.T) {
	svc, db := setupTestService(t)
	p := seedProduct(t, db, "원두 커피", 28000, 10)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddToCart("user_other", &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, svc.ClearCart(testOwner))

	other, err := svc.GetCart("user_other")
	require.NoError(t, err)
	assert.Len(t, other.Items, 1)
}

func TestGetCartItemCount(t *testing.T) {
	svc, db := setupTestService(t)
	p1 := seedProduct(t, db, "원두 커피", 28000, 10)
	p2 := seedProduct(t, db, "드립 세트", 45000, 10)

	_, err := svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p1.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddToCart(testOwner, &AddToCartRequest{ProductID: p2.ID, Quantity: 3})
	require.NoError(t, err)

	count, err := svc.GetCartItemCount(testOwner)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestGetCartItemCount_ReadFailure(t *testing.T) {
	svc, db := setupTestService(t)

	require.NoError(t, db.Migrator().DropTable(&CartItem{}))

	_, err := svc.GetCartItemCount(testOwner)
	assert.Error(t, err)
}
