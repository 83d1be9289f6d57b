package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"crewboard-api/domain"
)

// Stable error codes returned in response bodies.
const (
	codeInvalidInput        = "INVALID_INPUT"
	codeAlreadyExists       = "ALREADY_EXISTS"
	codeInvalidCredentials  = "INVALID_CREDENTIALS"
	codeConflict            = "CONFLICT"
	codeNotFound            = "NOT_FOUND"
	codeForbidden           = "FORBIDDEN"
	codeGenerationExhausted = "GENERATION_EXHAUSTED"
	codeUnauthorized        = "UNAUTHORIZED"
	codeInternal            = "INTERNAL_ERROR"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps a domain error to its HTTP representation. Credentials
// failures and internal errors get fixed generic messages so responses leak
// neither account existence nor backend detail.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, errorResponse{Code: codeInvalidCredentials, Message: "invalid credentials"})
	case errors.Is(err, domain.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorResponse{Code: codeForbidden, Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Code: codeNotFound, Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, errorResponse{Code: codeAlreadyExists, Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Code: codeConflict, Message: err.Error()})
	case errors.Is(err, domain.ErrGenerationExhausted):
		return c.JSON(http.StatusConflict, errorResponse{Code: codeGenerationExhausted, Message: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Code: codeInternal, Message: "internal error"})
	}
}

func respondUnauthorized(c echo.Context, err error) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Code: codeUnauthorized, Message: err.Error()})
}
