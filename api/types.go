package api

import (
	"context"

	"crewboard-api/domain"
)

// IdentityStore owns user accounts and the email/username mappings.
type IdentityStore interface {
	RegisterUser(ctx context.Context, email, password, language string) (domain.User, error)
	Authenticate(ctx context.Context, identifier, password string) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	ChangeUsername(ctx context.Context, userID, newUsername string) (domain.User, error)
	UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (domain.User, error)
	UsernameAvailable(ctx context.Context, userID, candidate string) (bool, error)
}

// TaskStore owns one task collection per owner key.
type TaskStore interface {
	GetTasks(ctx context.Context, ownerKey string) ([]domain.Task, error)
	SaveTasks(ctx context.Context, ownerKey string, tasks []domain.Task, forceEmpty bool) error
	SaveOrder(ctx context.Context, ownerKey string, orderedIDs []string) error
	DeleteTask(ctx context.Context, ownerKey, taskID string) error
}

// GroupStore owns group metadata, membership and invites.
type GroupStore interface {
	CreateGroup(ctx context.Context, ownerID, name string) (domain.Group, error)
	ListGroups(ctx context.Context, userID string) ([]domain.Group, error)
	ListInvites(ctx context.Context, userID string) ([]domain.Group, error)
	DeleteGroup(ctx context.Context, groupID, requesterID string) error
	Invite(ctx context.Context, groupID, requesterID, targetUsername string) error
	AcceptInvite(ctx context.Context, groupID, userID string) error
	DeclineInvite(ctx context.Context, groupID, userID string) error
	Kick(ctx context.Context, groupID, requesterID, targetID string) error
	Leave(ctx context.Context, groupID, userID string) error
	Members(ctx context.Context, groupID, requesterID string) ([]domain.Member, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// ChatStore owns the bounded per-group message log.
type ChatStore interface {
	PostMessage(ctx context.Context, groupID, senderID, text string) (domain.Message, error)
	GetMessages(ctx context.Context, groupID, userID string, limit int) ([]domain.Message, error)
}

// Storage is the full persistence surface the handlers are wired against.
type Storage interface {
	IdentityStore
	TaskStore
	GroupStore
	ChatStore
	Ping(ctx context.Context) error
}

// Authenticator issues session credentials and resolves them back to user ids.
type Authenticator interface {
	Issue(userID string) (string, error)
	UserIDFromAuthHeader(header string) (string, error)
}
