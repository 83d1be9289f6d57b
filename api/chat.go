package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

func getMessages(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}

		limit := 0
		limitParam := strings.TrimSpace(c.QueryParam("limit"))
		if limitParam != "" {
			limit, err = strconv.Atoi(limitParam)
			if err != nil || limit <= 0 {
				return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid limit"})
			}
		}

		messages, err := store.GetMessages(c.Request().Context(), c.Param("id"), userID, limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, messagesResponse{Messages: messages})
	}
}

func postMessage(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		var req postMessageRequest
		if err := decodeBody(c, chatMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
		}
		msg, err := store.PostMessage(c.Request().Context(), c.Param("id"), userID, req.Text)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, msg)
	}
}
