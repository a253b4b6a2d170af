package repositories

import (
	"context"
	"errors"

	"catalog/internal/models"
)

// ErrProductNotFound is returned when no product is stored under the requested ID.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository defines the interface for product data access.
// Implementations store records as given; they apply no business rules.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	// GetByID returns ErrProductNotFound when the ID is not stored.
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	// Save inserts the product when its ID is zero or unknown and overwrites it otherwise.
	// The assigned ID is written back into product.
	Save(ctx context.Context, product *models.Product) error
	// DeleteByID permanently removes the product. Deleting an absent ID is not an error.
	DeleteByID(ctx context.Context, id int64) error
}
