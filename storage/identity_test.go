package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"crewboard-api/domain"
)

func TestRegisterDerivesUsernameFromEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.RegisterUser(ctx, "jane@x.com", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "jane" {
		t.Fatalf("expected username jane, got %q", user.Username)
	}
	if user.ID == "" || user.CreatedAt == 0 {
		t.Fatalf("incomplete user: %+v", user)
	}

	byName, err := s.Authenticate(ctx, "jane", "password123")
	if err != nil {
		t.Fatalf("login by username: %v", err)
	}
	byEmail, err := s.Authenticate(ctx, "Jane@X.com", "password123")
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if byName.ID != user.ID || byEmail.ID != user.ID {
		t.Fatalf("logins resolved different users: %q %q %q", user.ID, byName.ID, byEmail.ID)
	}
}

func TestRegisterCollidingBaseGetsSuffixedUsername(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.RegisterUser(ctx, "jane@x.com", "password123", "")
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	second, err := s.RegisterUser(ctx, "jane@y.com", "password123", "")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}

	if first.Username != "jane" {
		t.Fatalf("expected first user to keep base, got %q", first.Username)
	}
	if !regexp.MustCompile(`^jane\d{4}$`).MatchString(second.Username) {
		t.Fatalf("expected 4-digit suffixed username, got %q", second.Username)
	}

	// Both must be able to log in by username afterwards.
	for _, u := range []domain.User{first, second} {
		if _, err := s.Authenticate(ctx, u.Username, "password123"); err != nil {
			t.Fatalf("login as %q: %v", u.Username, err)
		}
	}
}

func TestRegisterConcurrentCollisionsClaimDistinctNames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	const n = 8

	users := make([]domain.User, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users[i], errs[i] = s.RegisterUser(ctx, fmt.Sprintf("jane@host%d.com", i), "password123", "")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("register %d: %v", i, errs[i])
		}
		if _, dup := seen[users[i].Username]; dup {
			t.Fatalf("username %q claimed twice", users[i].Username)
		}
		seen[users[i].Username] = struct{}{}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.RegisterUser(ctx, "jane@x.com", "password123", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := s.RegisterUser(ctx, "JANE@x.com", "otherpassword", "")
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.RegisterUser(ctx, "not-an-email", "password123", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for email, got %v", err)
	}
	if _, err := s.RegisterUser(ctx, "jane@x.com", "short", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for password, got %v", err)
	}
}

func TestRegisterGenerationExhausted(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	// Occupy the base and the entire 4-digit suffix space.
	mr.Set(usernameKey("jane"), "someone")
	for i := 0; i < 10000; i++ {
		mr.Set(usernameKey(fmt.Sprintf("jane%04d", i)), "someone")
	}

	_, err := s.RegisterUser(ctx, "jane@x.com", "password123", "")
	if !errors.Is(err, domain.ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.RegisterUser(ctx, "jane@x.com", "password123", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := s.Authenticate(ctx, "jane", "wrongpassword"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody", "password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown username, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody@x.com", "password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthenticateMigratesLegacyUser(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	rec := legacyUser{
		Password: string(hash),
		Created:  1700000000000,
		Tasks: []domain.Task{
			{ID: "t1", Kind: domain.KindSimple, Title: "first", CreatedAt: 1},
			{ID: "t2", Kind: domain.KindCounter, Title: "second", CreatedAt: 2, Log: []domain.CounterEntry{{ID: "e1", At: 3}}},
		},
	}
	raw, _ := json.Marshal(rec)
	mr.Set(legacyUserKey("old@x.com"), string(raw))

	user, err := s.Authenticate(ctx, "old@x.com", "password123")
	if err != nil {
		t.Fatalf("legacy login: %v", err)
	}
	if user.Username != "old" {
		t.Fatalf("expected claimed username old, got %q", user.Username)
	}
	if mr.Exists(legacyUserKey("old@x.com")) {
		t.Fatalf("legacy record should be deleted after migration")
	}

	tasks, err := s.GetTasks(ctx, domain.UserOwner(user.ID))
	if err != nil {
		t.Fatalf("get tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t1" || tasks[1].ID != "t2" {
		t.Fatalf("unexpected migrated tasks: %+v", tasks)
	}
	if tasks[1].Count != 1 {
		t.Fatalf("expected counter normalized to log length, got %d", tasks[1].Count)
	}

	// Second login must hit the migrated record, not the legacy path.
	again, err := s.Authenticate(ctx, "old@x.com", "password123")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("expected stable user id, got %q and %q", user.ID, again.ID)
	}
}

func TestAuthenticateLegacyWrongPasswordDoesNotMigrate(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	raw, _ := json.Marshal(legacyUser{Password: string(hash)})
	mr.Set(legacyUserKey("old@x.com"), string(raw))

	if _, err := s.Authenticate(ctx, "old@x.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !mr.Exists(legacyUserKey("old@x.com")) {
		t.Fatalf("legacy record must survive a failed login")
	}
}

func TestChangeUsername(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.RegisterUser(ctx, "alice@x.com", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	renamed, err := s.ChangeUsername(ctx, user.ID, "bob")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Username != "bob" || renamed.UsernameChanges != 1 {
		t.Fatalf("unexpected user after rename: %+v", renamed)
	}

	// The old name is released and claimable by someone else.
	other, err := s.RegisterUser(ctx, "alice@y.com", "password123", "")
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if other.Username != "alice" {
		t.Fatalf("expected freed username alice, got %q", other.Username)
	}

	if _, err := s.Authenticate(ctx, "bob", "password123"); err != nil {
		t.Fatalf("login with new name: %v", err)
	}
}

func TestChangeUsernameClaimLostKeepsOldName(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	user, err := s.RegisterUser(ctx, "alice@x.com", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	mr.Set(usernameKey("bob"), "someone-else")

	_, err = s.ChangeUsername(ctx, user.ID, "bob")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// No partial state: the old mapping is intact and still logs in.
	got, err := s.Authenticate(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("login with old name: %v", err)
	}
	if got.Username != "alice" || got.UsernameChanges != 0 {
		t.Fatalf("rename must not consume state on failure: %+v", got)
	}
	if v, _ := mr.Get(usernameKey("bob")); v != "someone-else" {
		t.Fatalf("losing claim must not disturb the existing owner, got %q", v)
	}
}

func TestChangeUsernameCap(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.RegisterUser(ctx, "alice@x.com", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for i, name := range []string{"name_one", "name_two", "name_three"} {
		if user, err = s.ChangeUsername(ctx, user.ID, name); err != nil {
			t.Fatalf("rename %d: %v", i, err)
		}
	}
	if _, err := s.ChangeUsername(ctx, user.ID, "name_four"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict at the cap, got %v", err)
	}
}

func TestChangeUsernameValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.RegisterUser(ctx, "alice@x.com", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.ChangeUsername(ctx, user.ID, "no spaces"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUsernameAvailable(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	alice, err := s.RegisterUser(ctx, "alice@x.com", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	free, err := s.UsernameAvailable(ctx, alice.ID, "unclaimed")
	if err != nil || !free {
		t.Fatalf("expected unclaimed name to be available, got %v %v", free, err)
	}
	own, err := s.UsernameAvailable(ctx, alice.ID, "Alice")
	if err != nil || !own {
		t.Fatalf("expected own name to count as available, got %v %v", own, err)
	}
	taken, err := s.UsernameAvailable(ctx, "other-user", "alice")
	if err != nil || taken {
		t.Fatalf("expected alice to be taken for others, got %v %v", taken, err)
	}
	if _, err := s.UsernameAvailable(ctx, alice.ID, "x"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short name, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.RegisterUser(ctx, "alice@x.com", "password123", "de")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Settings.Language != "de" {
		t.Fatalf("expected register language to stick, got %q", user.Settings.Language)
	}

	theme := "dark"
	sound := false
	updated, err := s.UpdateSettings(ctx, user.ID, domain.SettingsPatch{Theme: &theme, Sound: &sound})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Settings.Theme != "dark" || updated.Settings.Sound {
		t.Fatalf("unexpected settings: %+v", updated.Settings)
	}

	reloaded, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Settings.Theme != "dark" || reloaded.Settings.Sound || reloaded.Settings.Language != "de" {
		t.Fatalf("settings not persisted: %+v", reloaded.Settings)
	}
}

func TestUpdateSettingsAvatarTooLarge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.RegisterUser(ctx, "alice@x.com", "password123", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	big := make([]byte, domain.MaxAvatarBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	avatar := string(big)
	if _, err := s.UpdateSettings(ctx, user.ID, domain.SettingsPatch{Avatar: &avatar}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
