package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/dilmapos/backend-pos/internal/app"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := app.NewPGXPool(ctx, dbURL, "pos-seeder")
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	seedEmployees(ctx, pool)
	seedProducts(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedEmployees(ctx context.Context, pool *pgxpool.Pool) {
	employees := []struct {
		Username string
		FullName string
		Role     string
		Password string
	}{
		{"admin", "Store Administrator", "Admin", "admin123"},
		{"maya", "Maya Haddad", "Cashier", "cashier123"},
		{"omar", "Omar Khalil", "Cashier", "cashier123"},
	}

	log.Println("Seeding Employees...")
	for _, e := range employees {
		hash, err := app.HashPassword(e.Password)
		if err != nil {
			log.Fatalf("Failed to hash password for %s: %v", e.Username, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO employees (username, full_name, role, password_hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (username) DO NOTHING;
		`, e.Username, e.FullName, e.Role, hash)
		if err != nil {
			log.Printf("Failed to seed employee %s: %v", e.Username, err)
		}
	}
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) {
	products := []struct {
		SKU       string
		Name      string
		Category  string
		UnitPrice string
		Cost      string
		Stock     int
	}{
		{"BEV-001", "Sparkling Water 500ml", "Beverages", "2.50", "1.10", 120},
		{"BEV-002", "Cold Brew Coffee 330ml", "Beverages", "9.00", "4.20", 48},
		{"BEV-003", "Fresh Orange Juice 1L", "Beverages", "14.00", "7.50", 30},
		{"SNK-001", "Salted Pistachios 200g", "Snacks", "18.50", "11.00", 60},
		{"SNK-002", "Dark Chocolate Bar 90g", "Snacks", "12.00", "6.40", 80},
		{"SNK-003", "Potato Chips 150g", "Snacks", "6.75", "3.10", 95},
		{"DRY-001", "Basmati Rice 5kg", "Dry Goods", "42.00", "28.00", 25},
		{"DRY-002", "Extra Virgin Olive Oil 750ml", "Dry Goods", "36.50", "22.75", 18},
		{"DRY-003", "Whole Wheat Pasta 500g", "Dry Goods", "8.25", "4.00", 70},
		{"HSH-001", "Dish Soap 750ml", "Household", "11.00", "5.50", 40},
		{"HSH-002", "Paper Towels 6-pack", "Household", "24.00", "14.00", 22},
		{"HSH-003", "Laundry Detergent 3L", "Household", "49.00", "31.00", 8},
	}

	log.Println("Seeding Products...")
	for _, p := range products {
		unitPrice, err := decimal.NewFromString(p.UnitPrice)
		if err != nil {
			log.Fatalf("Bad unit price for %s: %v", p.SKU, err)
		}
		cost, err := decimal.NewFromString(p.Cost)
		if err != nil {
			log.Fatalf("Bad cost for %s: %v", p.SKU, err)
		}

		var id string
		err = pool.QueryRow(ctx, `
			INSERT INTO products (sku, name, category, unit_price, cost)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				unit_price = EXCLUDED.unit_price,
				cost = EXCLUDED.cost,
				updated_at = now()
			RETURNING id;
		`, p.SKU, p.Name, p.Category, unitPrice, cost).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert product %s: %v", p.SKU, err)
			continue
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO inventory (product_id, stock_quantity)
			VALUES ($1, $2)
			ON CONFLICT (product_id) DO NOTHING;
		`, id, p.Stock)
		if err != nil {
			log.Printf("Failed to seed inventory for %s: %v", p.SKU, err)
		}
	}
}
