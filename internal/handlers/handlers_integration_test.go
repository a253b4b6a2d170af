package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"catalog/internal/database"
	"catalog/internal/handlers"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Meta struct {
		StatusCode int    `json:"statusCode"`
		Status     string `json:"status"`
		Message    string `json:"message"`
	} `json:"meta"`
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// setupApp wires the handlers against repo on a bare Fiber app.
func setupApp(repo repositories.ProductRepository) *fiber.App {
	productService := services.NewProductService(repo)

	app := fiber.New(fiber.Config{Views: views.NewEngine()})
	handlers.NewPageHandler(productService, true).RegisterRoutes(app)
	handlers.NewProductHandler(productService, zerolog.Nop()).RegisterRoutes(app.Group("/api"))
	return app
}

// setupSQLiteApp backs the app with an in-memory SQLite database seeded with the default products.
func setupSQLiteApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	repo := repositories.NewGORMProductRepository(db)
	require.NoError(t, repositories.SeedProducts(context.Background(), repo, zerolog.Nop()))
	return setupApp(repo)
}

func request(t *testing.T, app *fiber.App, method, target string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decode(t *testing.T, raw []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func decodeError(t *testing.T, env envelope) errorDetail {
	t.Helper()
	var detail errorDetail
	require.NoError(t, json.Unmarshal(env.Error, &detail))
	return detail
}

func TestProductLifecycle(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, raw := request(t, app, http.MethodPost, "/api/products", map[string]interface{}{"name": "Laptop", "price": 1500.0})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	env := decode(t, raw)
	assert.Equal(t, "Product Created", env.Meta.Message)
	assert.Equal(t, "CREATED", env.Meta.Status)
	assert.JSONEq(t, `[]`, string(env.Error))

	var created models.Product
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Laptop", created.Name)
	assert.NotZero(t, created.ID)

	resp, raw = request(t, app, http.MethodGet, fmt.Sprintf("/api/products/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Product
	require.NoError(t, json.Unmarshal(decode(t, raw).Data, &fetched))
	assert.Equal(t, "Laptop", fetched.Name)
	assert.Equal(t, "1500", fetched.Price.String())
	assert.Nil(t, fetched.DeletedAt)

	resp, raw = request(t, app, http.MethodDelete, fmt.Sprintf("/api/products/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, raw)

	resp, raw = request(t, app, http.MethodGet, fmt.Sprintf("/api/products/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	env = decode(t, raw)
	assert.Equal(t, "null", string(env.Data))
	detail := decodeError(t, env)
	assert.Equal(t, "not_found", detail.Type)
	assert.Equal(t, fmt.Sprintf("No product found with id %d", created.ID), detail.Detail)
	assert.Equal(t, http.StatusNotFound, detail.Status)
}

func TestGetProducts(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, _ := request(t, app, http.MethodDelete, "/api/products/1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, raw := request(t, app, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decode(t, raw)
	assert.Equal(t, "Success", env.Meta.Message)
	var active []models.Product
	require.NoError(t, json.Unmarshal(env.Data, &active))
	require.Len(t, active, 2)
	assert.Equal(t, "Smartphone", active[0].Name)

	_, raw = request(t, app, http.MethodGet, "/api/products?includeDeleted=true", nil)
	var all []models.Product
	require.NoError(t, json.Unmarshal(decode(t, raw).Data, &all))
	require.Len(t, all, 3)
	assert.True(t, all[0].IsDeleted())
}

func TestCreateProduct_WithExplicitID(t *testing.T) {
	app := setupApp(repositories.NewInMemoryProductRepository())

	resp, raw := request(t, app, http.MethodPost, "/api/products", `{"id": 42, "name": "Monitor", "price": 199.99}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Product
	require.NoError(t, json.Unmarshal(decode(t, raw).Data, &created))
	assert.Equal(t, int64(42), created.ID)

	resp, _ = request(t, app, http.MethodGet, "/api/products/42", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateProduct_MalformedBody(t *testing.T) {
	app := setupApp(repositories.NewInMemoryProductRepository())

	resp, raw := request(t, app, http.MethodPost, "/api/products", `{"name": "Broken",`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decode(t, raw)
	assert.Equal(t, "null", string(env.Data))
	assert.Equal(t, "bad_request", decodeError(t, env).Type)
}

func TestUpdateProduct(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, raw := request(t, app, http.MethodPut, "/api/products/2", map[string]interface{}{"name": "Phone", "price": 750.5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decode(t, raw)
	assert.Equal(t, "Updated", env.Meta.Message)

	var updated models.Product
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, int64(2), updated.ID)
	assert.Equal(t, "Phone", updated.Name)
	assert.Equal(t, "750.5", updated.Price.String())
	assert.Nil(t, updated.DeletedAt)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, raw := request(t, app, http.MethodPut, "/api/products/999", map[string]interface{}{"name": "Ghost", "price": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	detail := decodeError(t, decode(t, raw))
	assert.Equal(t, "not_found", detail.Type)
	assert.Equal(t, "No product found with id 999", detail.Detail)
}

func TestUpdateProduct_SoftDeleted(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, _ := request(t, app, http.MethodDelete, "/api/products/3", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = request(t, app, http.MethodPut, "/api/products/3", map[string]interface{}{"name": "Revived", "price": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteProduct_NotFound(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, raw := request(t, app, http.MethodDelete, "/api/products/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No product found with id 999", decodeError(t, decode(t, raw)).Detail)
}

func TestHardDeleteProduct(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, _ := request(t, app, http.MethodDelete, "/api/products/1/hard", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, raw := request(t, app, http.MethodGet, "/api/products?includeDeleted=true", nil)
	var all []models.Product
	require.NoError(t, json.Unmarshal(decode(t, raw).Data, &all))
	assert.Len(t, all, 2)

	// Unconditional: absent ids succeed too.
	resp, _ = request(t, app, http.MethodDelete, "/api/products/1/hard", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestInvalidID(t *testing.T) {
	app := setupApp(repositories.NewInMemoryProductRepository())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			resp, raw := request(t, app, method, "/api/products/abc", nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			detail := decodeError(t, decode(t, raw))
			assert.Equal(t, "invalid_id", detail.Type)
			assert.Contains(t, detail.Detail, `"abc"`)
		})
	}
}

// failingSoftDeleteRepository fails every save that marks a product deleted.
type failingSoftDeleteRepository struct {
	*repositories.InMemoryProductRepository
}

func (r failingSoftDeleteRepository) Save(ctx context.Context, product *models.Product) error {
	if product.DeletedAt != nil {
		return errors.New("disk full")
	}
	return r.InMemoryProductRepository.Save(ctx, product)
}

func TestDeleteProduct_ServerError(t *testing.T) {
	repo := failingSoftDeleteRepository{repositories.NewInMemoryProductRepository()}
	require.NoError(t, repositories.SeedProducts(context.Background(), repo, zerolog.Nop()))
	app := setupApp(repo)

	resp, raw := request(t, app, http.MethodDelete, "/api/products/1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	env := decode(t, raw)
	assert.Equal(t, "Server Error", env.Meta.Message)
	detail := decodeError(t, env)
	assert.Equal(t, "server_error", detail.Type)
	assert.Contains(t, detail.Detail, "id 1")
	assert.NotContains(t, detail.Detail, "disk full")
}

func TestProductsPage(t *testing.T) {
	app := setupSQLiteApp(t)
	request(t, app, http.MethodDelete, "/api/products/2", nil)

	resp, raw := request(t, app, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(raw)
	assert.Contains(t, page, "Laptop")
	assert.Contains(t, page, "Smartphone")
	assert.Contains(t, page, `class="deleted"`)
}

func TestErrorTestRoute(t *testing.T) {
	app := setupApp(repositories.NewInMemoryProductRepository())

	resp, _ := request(t, app, http.MethodGet, "/error-test", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCreateProduct_IgnoresClientDeletedAt(t *testing.T) {
	app := setupApp(repositories.NewInMemoryProductRepository())

	resp, raw := request(t, app, http.MethodPost, "/api/products", `{"name": "Ghost", "price": 1, "deletedAt": "2020-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Product
	require.NoError(t, json.Unmarshal(decode(t, raw).Data, &created))
	assert.Nil(t, created.DeletedAt)

	resp, _ = request(t, app, http.MethodGet, fmt.Sprintf("/api/products/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateProduct_SoftDeletedIDConflicts(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, _ := request(t, app, http.MethodDelete, "/api/products/1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, raw := request(t, app, http.MethodPost, "/api/products", `{"id": 1, "name": "Laptop 2", "price": 1}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	env := decode(t, raw)
	assert.Equal(t, "null", string(env.Data))
	detail := decodeError(t, env)
	assert.Equal(t, "conflict", detail.Type)
	assert.Equal(t, "Product with id 1 has been deleted", detail.Detail)

	resp, _ = request(t, app, http.MethodGet, "/api/products/1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateProduct_ExistingIDOverwrites(t *testing.T) {
	app := setupSQLiteApp(t)

	resp, _ := request(t, app, http.MethodPost, "/api/products", `{"id": 2, "name": "Phone", "price": 700}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, raw := request(t, app, http.MethodGet, "/api/products/2", nil)
	var fetched models.Product
	require.NoError(t, json.Unmarshal(decode(t, raw).Data, &fetched))
	assert.Equal(t, "Phone", fetched.Name)
}

// deleteOnFirstReadRepository soft deletes the requested product right before the first
// lookup, as a DELETE that lands just ahead of another request for the same id would.
type deleteOnFirstReadRepository struct {
	*repositories.InMemoryProductRepository
	deletedAt time.Time
	once      sync.Once
}

func (r *deleteOnFirstReadRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	r.once.Do(func() {
		product, err := r.InMemoryProductRepository.GetByID(ctx, id)
		if err == nil {
			product.DeletedAt = &r.deletedAt
			_ = r.InMemoryProductRepository.Save(ctx, product)
		}
	})
	return r.InMemoryProductRepository.GetByID(ctx, id)
}

func newDeleteOnFirstReadRepository(t *testing.T) *deleteOnFirstReadRepository {
	t.Helper()
	repo := &deleteOnFirstReadRepository{
		InMemoryProductRepository: repositories.NewInMemoryProductRepository(),
		deletedAt:                 time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, repositories.SeedProducts(context.Background(), repo, zerolog.Nop()))
	return repo
}

func TestUpdateProduct_DeletedBeforeUpdate(t *testing.T) {
	repo := newDeleteOnFirstReadRepository(t)
	app := setupApp(repo)

	resp, raw := request(t, app, http.MethodPut, "/api/products/1", map[string]interface{}{"name": "B", "price": 2})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, decode(t, raw)).Type)

	stored, err := repo.InMemoryProductRepository.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", stored.Name)
	require.NotNil(t, stored.DeletedAt)
	assert.True(t, stored.DeletedAt.Equal(repo.deletedAt))
}

func TestDeleteProduct_DeletedBeforeDelete(t *testing.T) {
	repo := newDeleteOnFirstReadRepository(t)
	app := setupApp(repo)

	resp, _ := request(t, app, http.MethodDelete, "/api/products/1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	stored, err := repo.InMemoryProductRepository.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, stored.DeletedAt)
	assert.True(t, stored.DeletedAt.Equal(repo.deletedAt), "the first deletion time is kept")
}
