// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Models in dependency order
	models := []interface{}{
		&product.Product{},
		&cart.CartItem{},
		&order.Order{},
		&order.OrderItem{},
	}

	for _, model := range models {
		log.Printf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_category_active ON products(category, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",

		// Cart indexes
		"CREATE INDEX IF NOT EXISTS idx_cart_items_created_at ON cart_items(created_at DESC)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_owner_status ON orders(owner_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)",

		// Order items indexes
		"CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts initial data into the database
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	if err := m.seedSampleProducts(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

// seedSampleProducts creates a small catalog for development and payment testing
func (m *Migration) seedSampleProducts() error {
	log.Println("🛍️ Seeding sample products...")

	var productCount int64
	m.db.Model(&product.Product{}).Count(&productCount)

	if productCount > 0 {
		log.Println("⏭️ Products already exist")
		return nil
	}

	sampleProducts := []product.Product{
		{
			Name:          "프리미엄 원두 커피 1kg",
			Description:   "스페셜티 등급의 싱글 오리진 원두입니다. 로스팅 후 일주일 이내에 발송됩니다.",
			Price:         28000,
			Category:      "food",
			ImageURL:      "https://example.com/images/coffee-beans.jpg",
			StockQuantity: 40,
			IsActive:      true,
		},
		{
			Name:          "세라믹 드립 커피 세트",
			Description:   "드리퍼, 서버, 계량 스푼으로 구성된 핸드드립 입문 세트입니다.",
			Price:         45000,
			Category:      "kitchen",
			ImageURL:      "https://example.com/images/drip-set.jpg",
			StockQuantity: 15,
			IsActive:      true,
		},
		{
			Name:          "스테인리스 텀블러 500ml",
			Description:   "이중 진공 구조로 보온과 보냉이 오래 유지되는 텀블러입니다.",
			Price:         19000,
			Category:      "kitchen",
			ImageURL:      "https://example.com/images/tumbler.jpg",
			StockQuantity: 60,
			IsActive:      true,
		},
		{
			Name:          "한정판 에코백",
			Description:   "판매 종료된 한정판 상품입니다.",
			Price:         12000,
			Category:      "goods",
			ImageURL:      "https://example.com/images/ecobag.jpg",
			StockQuantity: 0,
			IsActive:      false,
		},
	}

	for _, prod := range sampleProducts {
		if err := m.db.Create(&prod).Error; err != nil {
			log.Printf("⚠️ Failed to create sample product %q: %v", prod.Name, err)
		} else {
			log.Printf("✅ Created sample product: %s", prod.Name)
		}
	}

	return nil
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	log.Println("⚠️ WARNING: Dropping all database tables...")

	// Reverse dependency order
	tables := []string{
		"order_items",
		"orders",
		"cart_items",
		"products",
	}

	for _, table := range tables {
		if err := m.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			log.Printf("⚠️ Failed to drop table %s: %v", table, err)
		} else {
			log.Printf("🗑️ Dropped table: %s", table)
		}
	}

	log.Println("✅ All tables dropped successfully")
	return nil
}

// GetTableInfo returns information about database tables
func (m *Migration) GetTableInfo() error {
	var tables []string

	if err := m.db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename").Scan(&tables).Error; err != nil {
		return err
	}

	log.Println("📊 Database Tables Information:")
	log.Println("================================")

	totalRecords := int64(0)
	for _, table := range tables {
		var count int64
		m.db.Table(table).Count(&count)
		totalRecords += count

		status := "✅"
		if count == 0 {
			status = "📭"
		}

		log.Printf("%s %-25s | %d records", status, table, count)
	}

	log.Println("================================")
	log.Printf("📈 Total records across all tables: %d", totalRecords)
	log.Printf("🗂️ Total tables: %d", len(tables))

	return nil
}
