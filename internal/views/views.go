// Package views holds the server-rendered HTML pages.
package views

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

// Template names passed to fiber.Ctx.Render.
const (
	ProductsPage = "products"
	ErrorPage    = "error"
)

//go:embed templates/*.html
var templates embed.FS

// NewEngine returns a Fiber view engine backed by the embedded templates.
func NewEngine() *html.Engine {
	root, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(root), ".html")
}

// ErrorData is bound to the error page.
type ErrorData struct {
	Status  int
	Title   string
	Message string
}
