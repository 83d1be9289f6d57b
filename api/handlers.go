package api

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, logger *log.Logger) {
	e.POST("/api/register", register(store, auth))
	e.POST("/api/login", login(store, auth))
	e.POST("/api/logout", logout())
	e.GET("/api/session", session(store, auth))

	e.GET("/api/username/available", usernameAvailable(store, auth))
	e.PUT("/api/username", changeUsername(store, auth))
	e.PUT("/api/settings", updateSettings(store, auth))

	e.GET("/api/tasks", getTasks(store, auth, logger))
	e.PUT("/api/tasks", saveTasks(store, auth))
	e.PUT("/api/tasks/order", saveOrder(store, auth))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth))

	e.POST("/api/groups", createGroup(store, auth))
	e.GET("/api/groups", listGroups(store, auth))
	e.DELETE("/api/groups/:id", deleteGroup(store, auth))
	e.POST("/api/groups/:id/invites", inviteToGroup(store, auth))
	e.POST("/api/groups/:id/invites/accept", acceptInvite(store, auth))
	e.POST("/api/groups/:id/invites/decline", declineInvite(store, auth))
	e.POST("/api/groups/:id/kick", kickFromGroup(store, auth))
	e.POST("/api/groups/:id/leave", leaveGroup(store, auth))
	e.GET("/api/groups/:id/members", groupMembers(store, auth))

	e.GET("/api/groups/:id/tasks", getGroupTasks(store, auth, logger))
	e.PUT("/api/groups/:id/tasks", saveGroupTasks(store, auth))
	e.PUT("/api/groups/:id/tasks/order", saveGroupOrder(store, auth))
	e.DELETE("/api/groups/:id/tasks/:taskId", deleteGroupTask(store, auth))

	e.GET("/api/groups/:id/chat", getMessages(store, auth))
	e.POST("/api/groups/:id/chat", postMessage(store, auth))

	e.GET("/healthz", healthz(store))
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

// decodeBody reads a size-capped JSON body with unknown fields rejected.
func decodeBody(c echo.Context, maxSize int64, v any) error {
	lr := io.LimitReader(c.Request().Body, maxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
