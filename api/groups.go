package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func createGroup(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		var req createGroupRequest
		if err := decodeBody(c, groupMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
		}
		group, err := store.CreateGroup(c.Request().Context(), userID, req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, group)
	}
}

func listGroups(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		ctx := c.Request().Context()
		groups, err := store.ListGroups(ctx, userID)
		if err != nil {
			return respondError(c, err)
		}
		invites, err := store.ListInvites(ctx, userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, groupsResponse{Groups: groups, Invites: invites})
	}
}

func deleteGroup(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		if err := store.DeleteGroup(c.Request().Context(), c.Param("id"), userID); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func inviteToGroup(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		var req inviteRequest
		if err := decodeBody(c, groupMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
		}
		if err := store.Invite(c.Request().Context(), c.Param("id"), userID, req.Username); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func acceptInvite(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		if err := store.AcceptInvite(c.Request().Context(), c.Param("id"), userID); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func declineInvite(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		if err := store.DeclineInvite(c.Request().Context(), c.Param("id"), userID); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func kickFromGroup(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		var req kickRequest
		if err := decodeBody(c, groupMaxSize, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidInput, Message: "invalid body"})
		}
		if err := store.Kick(c.Request().Context(), c.Param("id"), userID, req.UserID); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func leaveGroup(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		if err := store.Leave(c.Request().Context(), c.Param("id"), userID); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func groupMembers(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return respondUnauthorized(c, err)
		}
		members, err := store.Members(c.Request().Context(), c.Param("id"), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, membersResponse{Members: members})
	}
}
