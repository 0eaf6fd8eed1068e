package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/noah-isme/toko-affiliate/internal/auth"
	"github.com/noah-isme/toko-affiliate/internal/common"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(db)
	resellerIDs := seedResellers(db)
	printDevTokens(resellerIDs)

	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) {
	products := []struct {
		Name          string
		Slug          string
		RegularPrice  string
		AdminDiscount string
		Purchasable   bool
	}{
		{"Kaos Hitam Polos", "kaos-hitam-polos", "100000", "", true},
		{"Nike Air Force 1", "nike-air-force-1", "1500000", "10", true},
		{"Sony WH-1000XM5", "sony-wh-1000xm5", "5000000", "5", true},
		{"Dyson V15 Detect", "dyson-v15", "12000000", "", true},
		{"LEGO Millennium Falcon", "lego-millennium-falcon", "13000000", "15", true},
		{"Gift Card", "gift-card", "", "", false},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (name, slug, regular_price, purchasable, admin_discount_percent)
			VALUES ($1, $2, NULLIF($3, '')::numeric, $4, NULLIF($5, '')::numeric)
			ON CONFLICT (slug) DO UPDATE SET
				name = EXCLUDED.name,
				regular_price = EXCLUDED.regular_price,
				purchasable = EXCLUDED.purchasable,
				admin_discount_percent = EXCLUDED.admin_discount_percent,
				updated_at = now();
		`, p.Name, p.Slug, p.RegularPrice, p.Purchasable, p.AdminDiscount)
		if err != nil {
			log.Printf("Failed to upsert product %s: %v", p.Slug, err)
		}
	}
}

func seedResellers(db *sql.DB) []string {
	resellers := []struct {
		Name  string
		Email string
	}{
		{"Rina Kusuma", "rina@example.com"},
		{"Bayu Saputra", "bayu@example.com"},
		{"Citra Maharani", "citra@example.com"},
	}

	fmt.Println("Seeding Resellers...")
	ids := make([]string, 0, len(resellers))
	for _, r := range resellers {
		var id string
		err := db.QueryRow(`
			INSERT INTO resellers (name, email)
			VALUES ($1, $2)
			ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`, r.Name, r.Email).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert reseller %s: %v", r.Email, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// printDevTokens issues bearer tokens for local testing when JWT_SECRET is set.
func printDevTokens(resellerIDs []string) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return
	}
	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   secret,
		Issuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		Audience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
	})
	if err != nil {
		log.Printf("Skipping dev tokens: %v", err)
		return
	}

	fmt.Println("Dev tokens (24h):")
	admin, err := verifier.Issue(common.Principal{ID: "admin", Role: common.RoleAdmin}, 24*time.Hour)
	if err == nil {
		fmt.Printf("  admin    %s\n", admin)
	}
	for _, id := range resellerIDs {
		token, err := verifier.Issue(common.Principal{ID: id, Role: common.RoleReseller}, 24*time.Hour)
		if err != nil {
			log.Printf("Failed to issue token for %s: %v", id, err)
			continue
		}
		fmt.Printf("  reseller %s %s\n", id, token)
	}
}
