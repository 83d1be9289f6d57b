package api

import "crewboard-api/domain"

// Request body size caps per endpoint family.
const (
	authMaxSize     = 4 * 1024
	settingsMaxSize = 32 * 1024 // leaves room for an avatar at its cap
	tasksMaxSize    = 1024 * 1024
	chatMaxSize     = 8 * 1024
	groupMaxSize    = 4 * 1024
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Language string `json:"language,omitempty"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token,omitempty"`
	User  domain.User `json:"user"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type settingsRequest struct {
	Theme    *string `json:"theme,omitempty"`
	Sound    *bool   `json:"sound,omitempty"`
	Language *string `json:"language,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type saveTasksRequest struct {
	Tasks      []domain.Task `json:"tasks"`
	ForceEmpty bool          `json:"forceEmpty,omitempty"`
}

type saveOrderRequest struct {
	Order []string `json:"order"`
}

type createGroupRequest struct {
	Name string `json:"name"`
}

type groupsResponse struct {
	Groups  []domain.Group `json:"groups"`
	Invites []domain.Group `json:"invites"`
}

type inviteRequest struct {
	Username string `json:"username"`
}

type kickRequest struct {
	UserID string `json:"userId"`
}

type membersResponse struct {
	Members []domain.Member `json:"members"`
}

type messagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}
