// Package client implements the synchronization discipline the web and
// mobile frontends follow: optimistic local mutation, server write,
// rollback on failure, and interval polling for shared group state.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"crewboard-api/domain"
)

const responseMaxSize = 4 * 1024 * 1024

// APIError is a structured failure returned by the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (%d %s)", e.Message, e.Status, e.Code)
}

// Session is the credential plus profile returned by register and login.
type Session struct {
	Token string      `json:"token,omitempty"`
	User  domain.User `json:"user"`
}

// API is a typed HTTP client for the task service.
type API struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPI creates a client for the service at baseURL.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{baseURL: baseURL, http: httpClient}
}

// SetToken installs the session token used on subsequent requests.
func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

// Token returns the currently installed session token.
func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseMaxSize))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := sonic.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "UNKNOWN"
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out != nil && len(data) > 0 {
		if err := sonic.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Register creates an account and installs the returned session token.
func (a *API) Register(ctx context.Context, email, password, language string) (Session, error) {
	req := map[string]string{"email": email, "password": password}
	if language != "" {
		req["language"] = language
	}
	var sess Session
	if err := a.do(ctx, http.MethodPost, "/api/register", req, &sess); err != nil {
		return Session{}, err
	}
	a.SetToken(sess.Token)
	return sess, nil
}

// Login authenticates by email or username and installs the session token.
func (a *API) Login(ctx context.Context, identifier, password string) (Session, error) {
	req := map[string]string{"identifier": identifier, "password": password}
	var sess Session
	if err := a.do(ctx, http.MethodPost, "/api/login", req, &sess); err != nil {
		return Session{}, err
	}
	a.SetToken(sess.Token)
	return sess, nil
}

// Logout discards the session on both sides.
func (a *API) Logout(ctx context.Context) error {
	err := a.do(ctx, http.MethodPost, "/api/logout", nil, nil)
	a.SetToken("")
	return err
}

// CurrentSession fetches the profile behind the installed token.
func (a *API) CurrentSession(ctx context.Context) (domain.User, error) {
	var sess Session
	if err := a.do(ctx, http.MethodGet, "/api/session", nil, &sess); err != nil {
		return domain.User{}, err
	}
	return sess.User, nil
}

// UsernameAvailable reports whether the candidate name is free to claim.
func (a *API) UsernameAvailable(ctx context.Context, candidate string) (bool, error) {
	var resp struct {
		Available bool `json:"available"`
	}
	err := a.do(ctx, http.MethodGet, "/api/username/available?u="+candidate, nil, &resp)
	return resp.Available, err
}

// ChangeUsername claims a new username for the current user.
func (a *API) ChangeUsername(ctx context.Context, username string) (domain.User, error) {
	var sess Session
	err := a.do(ctx, http.MethodPut, "/api/username", map[string]string{"username": username}, &sess)
	return sess.User, err
}

// UpdateSettings applies a partial settings update.
func (a *API) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.User, error) {
	req := map[string]any{}
	if patch.Theme != nil {
		req["theme"] = *patch.Theme
	}
	if patch.Sound != nil {
		req["sound"] = *patch.Sound
	}
	if patch.Language != nil {
		req["language"] = *patch.Language
	}
	if patch.Avatar != nil {
		req["avatar"] = *patch.Avatar
	}
	var sess Session
	err := a.do(ctx, http.MethodPut, "/api/settings", req, &sess)
	return sess.User, err
}

type tasksPayload struct {
	Tasks      []domain.Task `json:"tasks"`
	ForceEmpty bool          `json:"forceEmpty,omitempty"`
}

// Tasks fetches the ordered personal task list.
func (a *API) Tasks(ctx context.Context) ([]domain.Task, error) {
	var resp tasksPayload
	if err := a.do(ctx, http.MethodGet, "/api/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// SaveTasks submits the full personal task list.
func (a *API) SaveTasks(ctx context.Context, tasks []domain.Task, forceEmpty bool) error {
	return a.do(ctx, http.MethodPut, "/api/tasks", tasksPayload{Tasks: tasks, ForceEmpty: forceEmpty}, nil)
}

// SaveOrder rewrites only the personal display order.
func (a *API) SaveOrder(ctx context.Context, order []string) error {
	return a.do(ctx, http.MethodPut, "/api/tasks/order", map[string][]string{"order": order}, nil)
}

// DeleteTask removes a single personal task.
func (a *API) DeleteTask(ctx context.Context, taskID string) error {
	return a.do(ctx, http.MethodDelete, "/api/tasks/"+taskID, nil, nil)
}

// GroupTasks fetches the ordered task list of a group.
func (a *API) GroupTasks(ctx context.Context, groupID string) ([]domain.Task, error) {
	var resp tasksPayload
	if err := a.do(ctx, http.MethodGet, "/api/groups/"+groupID+"/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// SaveGroupTasks submits the full task list of a group.
func (a *API) SaveGroupTasks(ctx context.Context, groupID string, tasks []domain.Task, forceEmpty bool) error {
	return a.do(ctx, http.MethodPut, "/api/groups/"+groupID+"/tasks", tasksPayload{Tasks: tasks, ForceEmpty: forceEmpty}, nil)
}

// SaveGroupOrder rewrites only a group's display order.
func (a *API) SaveGroupOrder(ctx context.Context, groupID string, order []string) error {
	return a.do(ctx, http.MethodPut, "/api/groups/"+groupID+"/tasks/order", map[string][]string{"order": order}, nil)
}

// DeleteGroupTask removes a single task from a group's collection.
func (a *API) DeleteGroupTask(ctx context.Context, groupID, taskID string) error {
	return a.do(ctx, http.MethodDelete, "/api/groups/"+groupID+"/tasks/"+taskID, nil, nil)
}

// Groups fetches the caller's memberships and pending invites.
func (a *API) Groups(ctx context.Context) (groups, invites []domain.Group, err error) {
	var resp struct {
		Groups  []domain.Group `json:"groups"`
		Invites []domain.Group `json:"invites"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/groups", nil, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Groups, resp.Invites, nil
}

// CreateGroup creates a group owned by the caller.
func (a *API) CreateGroup(ctx context.Context, name string) (domain.Group, error) {
	var group domain.Group
	err := a.do(ctx, http.MethodPost, "/api/groups", map[string]string{"name": name}, &group)
	return group, err
}

// DeleteGroup destroys a group the caller owns.
func (a *API) DeleteGroup(ctx context.Context, groupID string) error {
	return a.do(ctx, http.MethodDelete, "/api/groups/"+groupID, nil, nil)
}

// Invite invites a user by username.
func (a *API) Invite(ctx context.Context, groupID, username string) error {
	return a.do(ctx, http.MethodPost, "/api/groups/"+groupID+"/invites", map[string]string{"username": username}, nil)
}

// AcceptInvite joins a group the caller was invited to.
func (a *API) AcceptInvite(ctx context.Context, groupID string) error {
	return a.do(ctx, http.MethodPost, "/api/groups/"+groupID+"/invites/accept", nil, nil)
}

// DeclineInvite clears a pending invite.
func (a *API) DeclineInvite(ctx context.Context, groupID string) error {
	return a.do(ctx, http.MethodPost, "/api/groups/"+groupID+"/invites/decline", nil, nil)
}

// Kick removes a member from a group the caller owns.
func (a *API) Kick(ctx context.Context, groupID, userID string) error {
	return a.do(ctx, http.MethodPost, "/api/groups/"+groupID+"/kick", map[string]string{"userId": userID}, nil)
}

// Leave removes the caller from a group.
func (a *API) Leave(ctx context.Context, groupID string) error {
	return a.do(ctx, http.MethodPost, "/api/groups/"+groupID+"/leave", nil, nil)
}

// Members lists a group's members.
func (a *API) Members(ctx context.Context, groupID string) ([]domain.Member, error) {
	var resp struct {
		Members []domain.Member `json:"members"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/groups/"+groupID+"/members", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// Messages fetches the newest chat messages of a group.
func (a *API) Messages(ctx context.Context, groupID string, limit int) ([]domain.Message, error) {
	path := "/api/groups/" + groupID + "/chat"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// PostMessage appends a chat message to a group.
func (a *API) PostMessage(ctx context.Context, groupID, text string) (domain.Message, error) {
	var msg domain.Message
	err := a.do(ctx, http.MethodPost, "/api/groups/"+groupID+"/chat", map[string]string{"text": text}, &msg)
	return msg, err
}
