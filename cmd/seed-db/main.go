package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evercart/checkout/internal/domain/auth"
	"github.com/evercart/checkout/internal/domain/discount"
	"github.com/evercart/checkout/internal/domain/product"
	"github.com/evercart/checkout/internal/handler"
	"github.com/evercart/checkout/internal/storage/postgres"
)

type productJSON struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	SalePrice     *decimal.Decimal `json:"salePrice"`
	StockQuantity int              `json:"stockQuantity"`
	SKU           string           `json:"sku"`
	Category      string           `json:"category"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CHECKOUT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHECKOUT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHECKOUT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CHECKOUT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CHECKOUT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedDiscounts(ctx, postgres.NewDiscountRepository(pool)); err != nil {
		return errors.Wrap(err, "seed discount codes")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		err := repo.Upsert(ctx, &product.Product{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Price:         p.Price,
			SalePrice:     p.SalePrice,
			StockQuantity: p.StockQuantity,
			Status:        product.StatusPublished,
			SKU:           p.SKU,
			Category:      p.Category,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedDiscounts(ctx context.Context, repo *postgres.DiscountRepository) error {
	slog.Info("seeding discount codes")

	hundredUses := 100
	maxTwenty := decimal.NewFromInt(20)

	codes := []discount.Code{
		{
			Code:              "SAVE10",
			Description:       "10% off your order",
			Type:              discount.TypePercentage,
			Value:             decimal.NewFromInt(10),
			MaxDiscountAmount: &maxTwenty,
			PerUserLimit:      1,
			ValidFrom:         time.Now(),
			Active:            true,
		},
		{
			Code:         "WELCOME5",
			Description:  "$5 off your first order",
			Type:         discount.TypeFixed,
			Value:        decimal.NewFromInt(5),
			PerUserLimit: 1,
			ValidFrom:    time.Now(),
			Active:       true,
		},
		{
			Code:              "SHIPFREE",
			Description:       "Free shipping on any order",
			Type:              discount.TypeFreeShipping,
			MinPurchaseAmount: decimal.NewFromInt(25),
			UsageLimit:        &hundredUses,
			PerUserLimit:      2,
			ValidFrom:         time.Now(),
			Active:            true,
		},
		{
			Code:         "BUYTWOFREE",
			Description:  "Buy 2, cheapest item free",
			Type:         discount.TypeBuyXGetY,
			Value:        decimal.NewFromInt(2),
			PerUserLimit: 1,
			ValidFrom:    time.Now(),
			Active:       true,
		},
	}

	for i := range codes {
		if err := repo.UpsertCode(ctx, &codes[i]); err != nil {
			return errors.Wrapf(err, "upsert discount code %s", codes[i].Code)
		}

		slog.Info("upserted discount code",
			slog.String("code", codes[i].Code),
			slog.String("description", codes[i].Description),
		)
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	err := repo.Upsert(ctx, &auth.APIKeyInfo{
		ID:      uuid.New().String(),
		KeyHash: handler.HashAPIKey([]byte(pepper), apiKey),
		Name:    "Default test key",
		Scopes:  []string{"checkout"},
	})
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("name", "Default test key"))

	return nil
}
