package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog/internal/metrics"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/pkg/rabbitmq"

	"github.com/rs/zerolog"
)

// ErrProductNotFound is returned when an operation targets a product that does not exist
// or, for FindByID, is no longer active.
var ErrProductNotFound = repositories.ErrProductNotFound

// ErrProductDeleted is returned by Save when the given ID belongs to a soft-deleted product.
var ErrProductDeleted = errors.New("product has been deleted")

// EventPublisher publishes product lifecycle events. *rabbitmq.Client implements it.
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event rabbitmq.ProductEvent) error
}

// ProductService handles business logic related to products.
// It is the only component that mutates products; the repository stores what it is given.
type ProductService struct {
	repo      repositories.ProductRepository
	publisher EventPublisher
	locks     *keyedMutex
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a ProductService.
type Option func(*ProductService)

// WithPublisher makes the service publish an event after every successful mutation.
func WithPublisher(p EventPublisher) Option {
	return func(s *ProductService) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *ProductService) { s.log = log.With().Str("component", "product_service").Logger() }
}

// WithClock overrides the time source used to stamp soft deletes.
func WithClock(now func() time.Time) Option {
	return func(s *ProductService) { s.now = now }
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, opts ...Option) *ProductService {
	s := &ProductService{
		repo:  repo,
		locks: newKeyedMutex(),
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAllProducts returns every stored product, soft-deleted ones included.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetActiveProducts returns only products that have not been soft deleted.
func (s *ProductService) GetActiveProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	return active, nil
}

// FindByID returns the product only while it is active. Missing and soft-deleted
// products both yield ErrProductNotFound.
func (s *ProductService) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	// Reads of an id are serialized with its writes.
	defer s.locks.Lock(id)()
	return s.findActive(ctx, id)
}

func (s *ProductService) findActive(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.IsDeleted() {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Save stores a new product or overwrites name and price of an existing active one.
// DeletedAt is never taken from the caller. An ID that belongs to a soft-deleted product
// yields ErrProductDeleted. No field validation is applied.
func (s *ProductService) Save(ctx context.Context, product *models.Product) (*models.Product, error) {
	product.DeletedAt = nil
	eventType := rabbitmq.EventProductCreated

	if product.ID != 0 {
		defer s.locks.Lock(product.ID)()

		existing, err := s.repo.GetByID(ctx, product.ID)
		switch {
		case err == nil && existing.IsDeleted():
			return nil, ErrProductDeleted
		case err == nil:
			eventType = rabbitmq.EventProductUpdated
		case !errors.Is(err, ErrProductNotFound):
			return nil, fmt.Errorf("failed to save product: %w", err)
		}
	}

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to save product: %w", err)
	}
	s.recordMutation(ctx, eventType, product.ID)
	return product, nil
}

// UpdateProduct overwrites name and price of an existing product. ID and DeletedAt keep
// their stored values. Returns ErrProductNotFound without writing when the ID is unknown.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, newData models.Product) (*models.Product, error) {
	defer s.locks.Lock(id)()

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, product, newData)
}

// UpdateActiveProduct is UpdateProduct restricted to active products: the existence check
// and the write happen under the same lock, so a soft-deleted product yields ErrProductNotFound.
func (s *ProductService) UpdateActiveProduct(ctx context.Context, id int64, newData models.Product) (*models.Product, error) {
	defer s.locks.Lock(id)()

	product, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, product, newData)
}

func (s *ProductService) update(ctx context.Context, product *models.Product, newData models.Product) (*models.Product, error) {
	product.Name = newData.Name
	product.Price = newData.Price

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", product.ID, err)
	}
	s.recordMutation(ctx, rabbitmq.EventProductUpdated, product.ID)
	return product, nil
}

// SoftDelete stamps DeletedAt with the current time. Unknown IDs are ignored.
func (s *ProductService) SoftDelete(ctx context.Context, id int64) error {
	defer s.locks.Lock(id)()

	product, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrProductNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.softDelete(ctx, product)
}

// SoftDeleteActive soft deletes an active product. Unknown and already deleted products
// yield ErrProductNotFound and nothing is written.
func (s *ProductService) SoftDeleteActive(ctx context.Context, id int64) error {
	defer s.locks.Lock(id)()

	product, err := s.findActive(ctx, id)
	if err != nil {
		return err
	}
	return s.softDelete(ctx, product)
}

func (s *ProductService) softDelete(ctx context.Context, product *models.Product) error {
	deletedAt := s.now()
	product.DeletedAt = &deletedAt
	if err := s.repo.Save(ctx, product); err != nil {
		return fmt.Errorf("failed to soft delete product %d: %w", product.ID, err)
	}
	s.recordMutation(ctx, rabbitmq.EventProductSoftDeleted, product.ID)
	return nil
}

// HardDelete permanently removes the product without checking that it exists.
func (s *ProductService) HardDelete(ctx context.Context, id int64) error {
	defer s.locks.Lock(id)()

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to hard delete product %d: %w", id, err)
	}
	s.recordMutation(ctx, rabbitmq.EventProductHardDeleted, id)
	return nil
}

// recordMutation counts the operation and publishes its event. Publish failures are
// logged only; the mutation has already been persisted.
func (s *ProductService) recordMutation(ctx context.Context, eventType rabbitmq.EventType, id int64) {
	metrics.RecordProductOperation(string(eventType))

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishProductEvent(ctx, rabbitmq.NewProductEvent(eventType, id)); err != nil {
		s.log.Warn().Err(err).Str("event_type", string(eventType)).Int64("product_id", id).Msg("failed to publish product event")
	}
}
