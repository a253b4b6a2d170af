package repositories

import (
	"context"
	"fmt"

	"catalog/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultProducts is the starter catalog written by SeedProducts.
func DefaultProducts() []models.Product {
	return []models.Product{
		{Name: "Laptop", Price: decimal.RequireFromString("1500.00")},
		{Name: "Smartphone", Price: decimal.RequireFromString("800.00")},
		{Name: "Tablet", Price: decimal.RequireFromString("500.00")},
	}
}

// SeedProducts populates an empty repository with DefaultProducts.
// A repository that already holds records is left untouched.
func SeedProducts(ctx context.Context, repo ProductRepository, log zerolog.Logger) error {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing products: %w", err)
	}
	if len(existing) > 0 {
		log.Debug().Int("count", len(existing)).Msg("catalog already populated, skipping seed")
		return nil
	}

	products := DefaultProducts()
	for i := range products {
		if err := repo.Save(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", products[i].Name, err)
		}
		log.Info().Int64("product_id", products[i].ID).Str("name", products[i].Name).Msg("seeded product")
	}
	return nil
}
