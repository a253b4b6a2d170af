package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"catalog/internal/models"
	"catalog/internal/response"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
	log     zerolog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, log zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		log:     log.With().Str("component", "product_handler").Logger(),
	}
}

// RegisterRoutes registers the product routes under router.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
	productRoutes.Delete("/:id/hard", h.HandleHardDeleteProduct)
}

// HandleGetProducts lists active products, or every product with ?includeDeleted=true.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	var (
		products []models.Product
		err      error
	)
	if c.QueryBool("includeDeleted") {
		products, err = h.service.GetAllProducts(c.UserContext())
	} else {
		products, err = h.service.GetActiveProducts(c.UserContext())
	}
	if err != nil {
		return fmt.Errorf("could not retrieve products: %w", err)
	}
	return c.Status(fiber.StatusOK).JSON(response.Success(response.StatusOK, "Success", products))
}

// HandleGetProductByID returns a single active product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return invalidID(c, err)
	}

	product, err := h.service.FindByID(c.UserContext(), id)
	if errors.Is(err, services.ErrProductNotFound) {
		return notFound(c, id)
	}
	if err != nil {
		return fmt.Errorf("could not retrieve product %d: %w", id, err)
	}
	return c.Status(fiber.StatusOK).JSON(response.Success(response.StatusOK, "Success", product))
}

// productRequest is the accepted create/update body. It has no DeletedAt:
// only a soft delete sets it.
type productRequest struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func (r productRequest) product() models.Product {
	return models.Product{ID: r.ID, Name: r.Name, Price: r.Price}
}

// HandleCreateProduct stores the request body as a product. A body id, when given, is kept
// and an existing active product with that id is overwritten.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	product := req.product()
	saved, err := h.service.Save(c.UserContext(), &product)
	if errors.Is(err, services.ErrProductDeleted) {
		return c.Status(fiber.StatusConflict).JSON(response.ProductDeleted(product.ID))
	}
	if err != nil {
		return fmt.Errorf("could not create product: %w", err)
	}
	return c.Status(fiber.StatusCreated).JSON(response.Success(response.StatusCreated, "Product Created", saved))
}

// HandleUpdateProduct replaces name and price of an active product. A body id is ignored.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return invalidID(c, err)
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	updated, err := h.service.UpdateActiveProduct(c.UserContext(), id, req.product())
	if errors.Is(err, services.ErrProductNotFound) {
		return notFound(c, id)
	}
	if err != nil {
		return fmt.Errorf("could not update product %d: %w", id, err)
	}
	return c.Status(fiber.StatusOK).JSON(response.Success(response.StatusOK, "Updated", updated))
}

// HandleDeleteProduct soft deletes an active product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return invalidID(c, err)
	}

	err = h.service.SoftDeleteActive(c.UserContext(), id)
	if errors.Is(err, services.ErrProductNotFound) {
		return notFound(c, id)
	}
	if err != nil {
		h.log.Error().Err(err).Int64("product_id", id).Msg("soft delete failed")
		return c.Status(fiber.StatusInternalServerError).
			JSON(response.ServerError(fmt.Sprintf("Failed to delete product with id %d", id)))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleHardDeleteProduct permanently removes a product whether or not it exists.
func (h *ProductHandler) HandleHardDeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return invalidID(c, err)
	}

	if err := h.service.HardDelete(c.UserContext(), id); err != nil {
		h.log.Error().Err(err).Int64("product_id", id).Msg("hard delete failed")
		return c.Status(fiber.StatusInternalServerError).
			JSON(response.ServerError(fmt.Sprintf("Failed to delete product with id %d", id)))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// parseID reads the :id path parameter.
func parseID(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("product id %q is not a valid integer", raw)
	}
	return id, nil
}

func invalidID(c *fiber.Ctx, err error) error {
	env := response.Failure(response.StatusBadRequest, "Invalid Product ID",
		response.NewErrorDetail(response.TypeInvalidID, "Invalid Product ID", err.Error(), response.StatusBadRequest))
	return c.Status(fiber.StatusBadRequest).JSON(env)
}

func notFound(c *fiber.Ctx, id int64) error {
	return c.Status(fiber.StatusNotFound).JSON(response.ProductNotFound(id))
}

func badRequest(c *fiber.Ctx, err error) error {
	env := response.Failure(response.StatusBadRequest, "Invalid Request Body",
		response.NewErrorDetail(response.TypeBadRequest, "Invalid Request Body", err.Error(), response.StatusBadRequest))
	return c.Status(fiber.StatusBadRequest).JSON(env)
}
