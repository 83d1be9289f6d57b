package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"crewboard-api/domain"
)

func register(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerRequest
		if err := decodeBody(c, authMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
		}

		user, err := store.RegisterUser(c.Request().Context(), req.Email, req.Password, req.Language)
		if err != nil {
			return respondError(c, err)
		}
		token, err := auth.Issue(user.ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, sessionResponse{Token: token, User: user})
	}
}

func login(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := decodeBody(c, authMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
		}

		user, err := store.Authenticate(c.Request().Context(), req.Identifier, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		token, err := auth.Issue(user.ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, sessionResponse{Token: token, User: user})
	}
}

func logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		// Sessions are stateless tokens; the client discards its copy.
		return c.NoContent(http.StatusNoContent)
	}
}

func session(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		user, err := store.GetUser(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, sessionResponse{User: user})
	}
}

func usernameAvailable(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		candidate := strings.TrimSpace(c.QueryParam("u"))
		available, err := store.UsernameAvailable(c.Request().Context(), userID, candidate)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, availabilityResponse{Available: available})
	}
}

func changeUsername(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		var req usernameRequest
		if err := decodeBody(c, authMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
		}
		user, err := store.ChangeUsername(c.Request().Context(), userID, req.Username)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, sessionResponse{User: user})
	}
}

func patchFromRequest(req settingsRequest) domain.SettingsPatch {
	return domain.SettingsPatch{
		Theme:    req.Theme,
		Sound:    req.Sound,
		Language: req.Language,
		Avatar:   req.Avatar,
	}
}

func updateSettings(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		var req settingsRequest
		if err := decodeBody(c, settingsMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
		}
		user, err := store.UpdateSettings(c.Request().Context(), userID, patchFromRequest(req))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, sessionResponse{User: user})
	}
}
