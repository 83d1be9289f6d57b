package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"crewboard-api/domain"
)

func getTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newTaskRequestMetrics(logger, "/api/tasks")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = respondUnauthorized(c, authErr)
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.GetTasks(c.Request().Context(), domain.UserOwner(userID))
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = respondError(c, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func saveTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		return handleSaveTasks(c, store, domain.UserOwner(userID))
	}
}

func saveOrder(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		return handleSaveOrder(c, store, domain.UserOwner(userID))
	}
}

func deleteTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		return handleDeleteTask(c, store, domain.UserOwner(userID), c.Param("id"))
	}
}

func getGroupTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newTaskRequestMetrics(logger, "/api/groups/:id/tasks")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = respondUnauthorized(c, authErr)
			return err
		}
		ownerKey, gateErr := groupOwnerKey(c, store, userID)
		if gateErr != nil {
			metrics.SetErrorStage("membership")
			err = respondError(c, gateErr)
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.GetTasks(c.Request().Context(), ownerKey)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = respondError(c, fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func saveGroupTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		ownerKey, err := groupOwnerKey(c, store, userID)
		if err != nil {
			return respondError(c, err)
		}
		return handleSaveTasks(c, store, ownerKey)
	}
}

func saveGroupOrder(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		ownerKey, err := groupOwnerKey(c, store, userID)
		if err != nil {
			return respondError(c, err)
		}
		return handleSaveOrder(c, store, ownerKey)
	}
}

func deleteGroupTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		ownerKey, err := groupOwnerKey(c, store, userID)
		if err != nil {
			return respondError(c, err)
		}
		return handleDeleteTask(c, store, ownerKey, c.Param("taskId"))
	}
}

// groupOwnerKey resolves the :id route param to a group owner key, gated
// on the requester's membership.
func groupOwnerKey(c echo.Context, store Storage, userID string) (string, error) {
	groupID := c.Param("id")
	if groupID == "" {
		return "", fmt.Errorf("%w: missing group id", domain.ErrInvalidInput)
	}
	member, err := store.IsMember(c.Request().Context(), groupID, userID)
	if err != nil {
		return "", err
	}
	if !member {
		return "", fmt.Errorf("%w: not a group member", domain.ErrForbidden)
	}
	return domain.GroupOwner(groupID), nil
}

func handleSaveTasks(c echo.Context, store Storage, ownerKey string) error {
	var req saveTasksRequest
	if err := decodeBody(c, tasksMaxSize, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
	}
	if err := store.SaveTasks(c.Request().Context(), ownerKey, req.Tasks, req.ForceEmpty); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func handleSaveOrder(c echo.Context, store Storage, ownerKey string) error {
	var req saveOrderRequest
	if err := decodeBody(c, tasksMaxSize, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
	}
	if err := store.SaveOrder(c.Request().Context(), ownerKey, req.Order); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func handleDeleteTask(c echo.Context, store Storage, ownerKey, taskID string) error {
	if taskID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "missing task id"})
	}
	if err := store.DeleteTask(c.Request().Context(), ownerKey, taskID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
