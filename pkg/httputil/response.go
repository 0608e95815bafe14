package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medisched/scheduling-client/pkg/errors"
)

// Error codes carried on the wire. The gateway maps these back onto the
// client error taxonomy.
const (
	CodeValidation    = "validation_failed"
	CodeAlreadyBooked = "already_booked"
	CodeNotFound      = "not_found"
	CodeUnauthorized  = "unauthorized"
	CodeInternal      = "internal_error"
)

// Response wraps all API responses.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a structured API error. Conflicts is populated only
// for already_booked errors.
type Error struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Conflicts []errors.Occupant `json:"conflicts,omitempty"`
}

// Pagination represents pagination metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// ListEnvelope wraps paginated list payloads. The canonical item key is
// "items"; older deployments of the clinic API used "appointments", so
// the gateway accepts either.
type ListEnvelope struct {
	Items        json.RawMessage `json:"items,omitempty"`
	Appointments json.RawMessage `json:"appointments,omitempty"`
	Pagination   *Pagination     `json:"pagination,omitempty"`
}

// RespondWithSuccess sends a success response.
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	raw, _ := json.Marshal(data)
	c.JSON(status, Response{Success: true, Data: raw})
}

// RespondWithList sends a paginated list response under the "items" key.
func RespondWithList(c *gin.Context, items interface{}, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	rawItems, _ := json.Marshal(items)
	env := ListEnvelope{
		Items: rawItems,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: total,
			TotalPages: totalPages,
		},
	}
	raw, _ := json.Marshal(env)
	c.JSON(http.StatusOK, Response{Success: true, Data: raw})
}

// RespondWithError sends an error response.
func RespondWithError(c *gin.Context, status int, apiErr *Error) {
	c.JSON(status, Response{Success: false, Error: apiErr})
}

// RespondWithAppError maps a taxonomy error onto the wire shape.
func RespondWithAppError(c *gin.Context, err *errors.AppError) {
	switch err.Kind {
	case errors.KindValidation:
		RespondWithError(c, http.StatusBadRequest, &Error{
			Code:    CodeValidation,
			Message: err.Message,
			Fields:  err.Fields,
		})
	case errors.KindAlreadyBooked:
		RespondWithError(c, http.StatusConflict, &Error{
			Code:      CodeAlreadyBooked,
			Message:   err.Message,
			Conflicts: err.Occupants,
		})
	case errors.KindNotFound:
		RespondWithError(c, http.StatusNotFound, &Error{
			Code:    CodeNotFound,
			Message: err.Message,
		})
	case errors.KindUnauthorized:
		RespondWithError(c, http.StatusUnauthorized, &Error{
			Code:    CodeUnauthorized,
			Message: err.Message,
		})
	default:
		RespondWithError(c, http.StatusInternalServerError, &Error{
			Code:    CodeInternal,
			Message: err.Message,
		})
	}
}
