package response

import "net/http"

// Status is the closed set of outcomes an API response can report.
type Status int

const (
	StatusOK                  Status = http.StatusOK
	StatusCreated             Status = http.StatusCreated
	StatusNoContent           Status = http.StatusNoContent
	StatusBadRequest          Status = http.StatusBadRequest
	StatusNotFound            Status = http.StatusNotFound
	StatusMethodNotAllowed    Status = http.StatusMethodNotAllowed
	StatusConflict            Status = http.StatusConflict
	StatusInternalServerError Status = http.StatusInternalServerError
)

var statusNames = map[Status]string{
	StatusOK:                  "OK",
	StatusCreated:             "CREATED",
	StatusNoContent:           "NO_CONTENT",
	StatusBadRequest:          "BAD_REQUEST",
	StatusNotFound:            "NOT_FOUND",
	StatusMethodNotAllowed:    "METHOD_NOT_ALLOWED",
	StatusConflict:            "CONFLICT",
	StatusInternalServerError: "INTERNAL_SERVER_ERROR",
}

// Code returns the HTTP status code.
func (s Status) Code() int {
	return int(s)
}

// String returns the upper snake case name, e.g. NOT_FOUND.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}
