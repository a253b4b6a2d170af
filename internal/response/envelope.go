// Package response builds the uniform JSON envelope every API endpoint returns.
package response

import (
	"fmt"
	"time"
)

// Error type codes carried in ErrorDetail.Type.
const (
	TypeNotFound    = "not_found"
	TypeServerError = "server_error"
	TypeBadRequest  = "bad_request"
	TypeInvalidID   = "invalid_id"
	TypeNotAllowed  = "method_not_allowed"
	TypeConflict    = "conflict"
)

// Meta describes the outcome of a request.
type Meta struct {
	StatusCode int       `json:"statusCode"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorDetail is the error payload of a failed request.
type ErrorDetail struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope wraps a payload or an error together with Meta.
// Error is an empty array when the request succeeded, so it is never null.
type Envelope[T any] struct {
	Meta  Meta `json:"meta"`
	Data  T    `json:"data"`
	Error any  `json:"error"`
}

// New builds an envelope stamped with the current time.
func New[T any](status Status, message string, data T, errDetail *ErrorDetail) Envelope[T] {
	env := Envelope[T]{
		Meta: Meta{
			StatusCode: status.Code(),
			Status:     status.String(),
			Message:    message,
			Timestamp:  time.Now().UTC(),
		},
		Data:  data,
		Error: []ErrorDetail{},
	}
	if errDetail != nil {
		env.Error = *errDetail
	}
	return env
}

// Success builds an envelope carrying data and no error.
func Success[T any](status Status, message string, data T) Envelope[T] {
	return New(status, message, data, nil)
}

// Failure builds an envelope carrying an error and null data.
func Failure(status Status, message string, detail ErrorDetail) Envelope[any] {
	return New[any](status, message, nil, &detail)
}

// NewErrorDetail builds an ErrorDetail whose status mirrors the envelope status.
func NewErrorDetail(errType, title, detail string, status Status) ErrorDetail {
	return ErrorDetail{
		Type:      errType,
		Title:     title,
		Detail:    detail,
		Status:    status.Code(),
		Timestamp: time.Now().UTC(),
	}
}

// ProductNotFound is the 404 envelope for a missing or soft-deleted product.
func ProductNotFound(id int64) Envelope[any] {
	return Failure(StatusNotFound, "Product Not Found",
		NewErrorDetail(TypeNotFound, "Product Not Found", fmt.Sprintf("No product found with id %d", id), StatusNotFound))
}

// ProductDeleted is the 409 envelope for a write that targets a soft-deleted product's id.
func ProductDeleted(id int64) Envelope[any] {
	return Failure(StatusConflict, "Product Deleted",
		NewErrorDetail(TypeConflict, "Product Deleted", fmt.Sprintf("Product with id %d has been deleted", id), StatusConflict))
}

// ServerError is the 500 envelope for an unexpected failure.
func ServerError(detail string) Envelope[any] {
	return Failure(StatusInternalServerError, "Server Error",
		NewErrorDetail(TypeServerError, "Server Error", detail, StatusInternalServerError))
}
