package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"crewboard-api/domain"
)

const usernameClaimAttempts = 10

// dummyHash is a bcrypt hash of a throwaway string. Login attempts against
// unknown identifiers compare against it so response latency does not
// distinguish "unknown user" from "wrong password".
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

const (
	fieldEmail    = "email"
	fieldUsername = "username"
	fieldPassword = "password"
	fieldCreated  = "created"
	fieldRenames  = "renames"
	fieldTheme    = "theme"
	fieldSound    = "sound"
	fieldLang     = "lang"
	fieldAvatar   = "avatar"
)

// legacyUser is the pre-migration account record keyed directly by email:
// password hash plus the whole task list embedded as one array.
type legacyUser struct {
	ID       string        `json:"id,omitempty"`
	Password string        `json:"password"`
	Created  int64         `json:"created,omitempty"`
	Language string        `json:"language,omitempty"`
	Theme    string        `json:"theme,omitempty"`
	Tasks    []domain.Task `json:"tasks,omitempty"`
}

// RegisterUser creates an account. The derived username is claimed with a
// conditional write before any other state is persisted; the email mapping
// claim follows, and only then is the user record written.
func (s *Store) RegisterUser(ctx context.Context, email, password, language string) (domain.User, error) {
	email = domain.NormalizeIdentifier(email)
	if !domain.ValidEmail(email) {
		return domain.User{}, fmt.Errorf("%w: malformed email", domain.ErrInvalidInput)
	}
	if len(password) < domain.MinPasswordLen {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, domain.MinPasswordLen)
	}

	// Fast-path rejection. The SETNX below remains the arbiter under races.
	exists, err := s.rdb.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists > 0 {
		return domain.User{}, fmt.Errorf("%w: email already registered", domain.ErrAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.NewString()
	username, err := s.claimUsername(ctx, domain.UsernameBase(email), userID)
	if err != nil {
		return domain.User{}, err
	}

	ok, err := s.rdb.SetNX(ctx, emailKey(email), userID, 0).Result()
	if err == nil && !ok {
		err = fmt.Errorf("%w: email already registered", domain.ErrAlreadyExists)
	}
	if err != nil {
		// The username claim is the only reversible write so far.
		_ = s.rdb.Del(ctx, usernameKey(username)).Err()
		return domain.User{}, err
	}

	if language == "" {
		language = "en"
	}
	user := domain.User{
		ID:           userID,
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    nowMillis(),
		Settings:     domain.Settings{Theme: "default", Sound: true, Language: language},
	}
	if err := s.rdb.HSet(ctx, userKey(userID), userHashFields(user)).Err(); err != nil {
		return domain.User{}, fmt.Errorf("write user record: %w", err)
	}
	return user, nil
}

// claimUsername acquires a free username for userID: the base name first,
// then randomly suffixed candidates, bounded. SETNX is the sole arbiter so
// two concurrent claims can never both observe success for the same string.
func (s *Store) claimUsername(ctx context.Context, base, userID string) (string, error) {
	candidate := base
	for attempt := 0; attempt < usernameClaimAttempts; attempt++ {
		ok, err := s.rdb.SetNX(ctx, usernameKey(candidate), userID, 0).Result()
		if err != nil {
			return "", fmt.Errorf("claim username: %w", err)
		}
		if ok {
			return candidate, nil
		}
		candidate = domain.SuffixedCandidate(base, rand.Intn(10000))
	}
	return "", domain.ErrGenerationExhausted
}

// Authenticate resolves the identifier (email when it contains "@", username
// otherwise) and verifies the password. Unknown-email logins fall back to the
// legacy email-keyed record and migrate it transparently.
func (s *Store) Authenticate(ctx context.Context, identifier, password string) (domain.User, error) {
	ident := domain.NormalizeIdentifier(identifier)

	var userID string
	var err error
	if strings.Contains(ident, "@") {
		userID, err = s.rdb.Get(ctx, emailKey(ident)).Result()
		if err == redis.Nil {
			return s.loginLegacyUser(ctx, ident, password)
		}
	} else {
		userID, err = s.rdb.Get(ctx, usernameKey(ident)).Result()
		if err == redis.Nil {
			return domain.User{}, s.failLogin(password)
		}
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve identifier: %w", err)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, s.failLogin(password)
		}
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// failLogin burns a hash comparison before reporting failure.
func (s *Store) failLogin(password string) error {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return domain.ErrInvalidCredentials
}

// loginLegacyUser handles an email login with no entry in the email mapping:
// if a legacy record exists and the password matches, the account is migrated
// into the id-keyed representation (claiming a username along the way, and
// reshaping the embedded task array) before the login completes.
func (s *Store) loginLegacyUser(ctx context.Context, email, password string) (domain.User, error) {
	raw, err := s.rdb.Get(ctx, legacyUserKey(email)).Result()
	if err == redis.Nil {
		return domain.User{}, s.failLogin(password)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("read legacy user: %w", err)
	}

	var rec legacyUser
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.User{}, fmt.Errorf("parse legacy user %s: %w", email, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)) != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	userID := rec.ID
	if userID == "" {
		userID = uuid.NewString()
	}
	username, err := s.claimUsername(ctx, domain.UsernameBase(email), userID)
	if err != nil {
		return domain.User{}, err
	}

	ok, err := s.rdb.SetNX(ctx, emailKey(email), userID, 0).Result()
	if err != nil {
		_ = s.rdb.Del(ctx, usernameKey(username)).Err()
		return domain.User{}, fmt.Errorf("claim email: %w", err)
	}
	if !ok {
		// A concurrent login migrated this account first; use its result.
		_ = s.rdb.Del(ctx, usernameKey(username)).Err()
		winnerID, err := s.rdb.Get(ctx, emailKey(email)).Result()
		if err != nil {
			return domain.User{}, fmt.Errorf("resolve migrated user: %w", err)
		}
		return s.GetUser(ctx, winnerID)
	}

	created := rec.Created
	if created == 0 {
		created = nowMillis()
	}
	if rec.Language == "" {
		rec.Language = "en"
	}
	if rec.Theme == "" {
		rec.Theme = "default"
	}
	user := domain.User{
		ID:           userID,
		Email:        email,
		Username:     username,
		PasswordHash: rec.Password,
		CreatedAt:    created,
		Settings:     domain.Settings{Theme: rec.Theme, Sound: true, Language: rec.Language},
	}

	owner := domain.UserOwner(userID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, userKey(userID), userHashFields(user))
		order := make([]string, 0, len(rec.Tasks))
		for i := range rec.Tasks {
			t := rec.Tasks[i]
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			t.Normalize()
			data, merr := json.Marshal(t)
			if merr != nil {
				return merr
			}
			pipe.HSet(ctx, tasksKey(owner), t.ID, data)
			order = append(order, t.ID)
		}
		orderData, merr := json.Marshal(order)
		if merr != nil {
			return merr
		}
		pipe.Set(ctx, taskOrderKey(owner), orderData, 0)
		pipe.Del(ctx, legacyUserKey(email))
		return nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("migrate legacy user %s: %w", email, err)
	}
	return user, nil
}

// GetUser loads a user record by id.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	m, err := s.rdb.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return domain.User{}, fmt.Errorf("read user %s: %w", userID, err)
	}
	if len(m) == 0 {
		return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	return userFromHash(userID, m), nil
}

// ChangeUsername renames a user. The new mapping is claimed before the old
// one is released; losing the claim leaves the old username fully intact.
func (s *Store) ChangeUsername(ctx context.Context, userID, newUsername string) (domain.User, error) {
	if !domain.ValidUsername(newUsername) {
		return domain.User{}, fmt.Errorf("%w: malformed username", domain.ErrInvalidInput)
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	newLower := strings.ToLower(newUsername)
	oldLower := strings.ToLower(user.Username)
	if newLower == oldLower {
		return user, nil
	}
	if user.UsernameChanges >= domain.MaxUsernameChanges {
		return domain.User{}, fmt.Errorf("%w: username change limit reached", domain.ErrConflict)
	}

	ok, err := s.rdb.SetNX(ctx, usernameKey(newLower), userID, 0).Result()
	if err != nil {
		return domain.User{}, fmt.Errorf("claim username: %w", err)
	}
	if !ok {
		return domain.User{}, fmt.Errorf("%w: username taken", domain.ErrConflict)
	}

	user.Username = newUsername
	user.UsernameChanges++
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, usernameKey(oldLower))
		pipe.HSet(ctx, userKey(userID),
			fieldUsername, user.Username,
			fieldRenames, strconv.Itoa(user.UsernameChanges))
		return nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("apply rename: %w", err)
	}
	return user, nil
}

// UpdateSettings applies a partial settings update.
func (s *Store) UpdateSettings(ctx context.Context, userID string, patch domain.SettingsPatch) (domain.User, error) {
	if patch.Avatar != nil && len(*patch.Avatar) > domain.MaxAvatarBytes {
		return domain.User{}, fmt.Errorf("%w: avatar exceeds %d bytes", domain.ErrInvalidInput, domain.MaxAvatarBytes)
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	fields := make([]string, 0, 8)
	if patch.Theme != nil {
		user.Settings.Theme = *patch.Theme
		fields = append(fields, fieldTheme, user.Settings.Theme)
	}
	if patch.Sound != nil {
		user.Settings.Sound = *patch.Sound
		fields = append(fields, fieldSound, boolField(user.Settings.Sound))
	}
	if patch.Language != nil {
		user.Settings.Language = *patch.Language
		fields = append(fields, fieldLang, user.Settings.Language)
	}
	if patch.Avatar != nil {
		user.Avatar = *patch.Avatar
		fields = append(fields, fieldAvatar, user.Avatar)
	}
	if len(fields) == 0 {
		return user, nil
	}
	if err := s.rdb.HSet(ctx, userKey(userID), fields).Err(); err != nil {
		return domain.User{}, fmt.Errorf("write settings: %w", err)
	}
	return user, nil
}

// UsernameAvailable reports whether candidate can be claimed by userID. A
// name the user already owns counts as available.
func (s *Store) UsernameAvailable(ctx context.Context, userID, candidate string) (bool, error) {
	if !domain.ValidUsername(candidate) {
		return false, fmt.Errorf("%w: malformed username", domain.ErrInvalidInput)
	}
	owner, err := s.rdb.Get(ctx, usernameKey(strings.ToLower(candidate))).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return owner == userID, nil
}

// ResolveUsername maps a username to a user id.
func (s *Store) ResolveUsername(ctx context.Context, username string) (string, error) {
	id, err := s.rdb.Get(ctx, usernameKey(strings.ToLower(username))).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
	}
	if err != nil {
		return "", fmt.Errorf("resolve username: %w", err)
	}
	return id, nil
}

func userHashFields(u domain.User) map[string]string {
	return map[string]string{
		fieldEmail:    u.Email,
		fieldUsername: u.Username,
		fieldPassword: u.PasswordHash,
		fieldCreated:  strconv.FormatInt(u.CreatedAt, 10),
		fieldRenames:  strconv.Itoa(u.UsernameChanges),
		fieldTheme:    u.Settings.Theme,
		fieldSound:    boolField(u.Settings.Sound),
		fieldLang:     u.Settings.Language,
		fieldAvatar:   u.Avatar,
	}
}

func userFromHash(id string, m map[string]string) domain.User {
	created, _ := strconv.ParseInt(m[fieldCreated], 10, 64)
	renames, _ := strconv.Atoi(m[fieldRenames])
	return domain.User{
		ID:              id,
		Email:           m[fieldEmail],
		Username:        m[fieldUsername],
		PasswordHash:    m[fieldPassword],
		CreatedAt:       created,
		UsernameChanges: renames,
		Settings: domain.Settings{
			Theme:    m[fieldTheme],
			Sound:    m[fieldSound] == "1",
			Language: m[fieldLang],
		},
		Avatar: m[fieldAvatar],
	}
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
