package handlers

import (
	"errors"
	"fmt"

	"catalog/internal/services"
	"catalog/internal/views"

	"github.com/gofiber/fiber/v2"
)

// ErrDiagnosticFault is the fixed failure raised by the /error-test route.
var ErrDiagnosticFault = errors.New("this is a test exception")

// PageHandler serves the server-rendered pages.
type PageHandler struct {
	service     *services.ProductService
	diagnostics bool
}

// NewPageHandler creates a new PageHandler. diagnostics enables /error-test.
func NewPageHandler(service *services.ProductService, diagnostics bool) *PageHandler {
	return &PageHandler{
		service:     service,
		diagnostics: diagnostics,
	}
}

// RegisterRoutes registers the page routes with the Fiber app.
func (h *PageHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.HandleProductsPage)
	router.Get("/error", h.HandleNotFoundPage)
	if h.diagnostics {
		router.Get("/error-test", h.HandleErrorTest)
	}
}

// HandleProductsPage renders every stored product, soft-deleted ones marked as such.
func (h *PageHandler) HandleProductsPage(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return fmt.Errorf("could not retrieve products: %w", err)
	}
	return c.Render(views.ProductsPage, fiber.Map{"Products": products})
}

// HandleNotFoundPage renders the 404 page.
func (h *PageHandler) HandleNotFoundPage(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).Render(views.ErrorPage, views.ErrorData{
		Status:  fiber.StatusNotFound,
		Title:   "Not Found",
		Message: "The page you are looking for does not exist.",
	})
}

// HandleErrorTest always fails so the error page can be checked end to end.
func (h *PageHandler) HandleErrorTest(c *fiber.Ctx) error {
	return ErrDiagnosticFault
}
