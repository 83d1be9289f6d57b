package storage

import (
	"context"
	"errors"
	"testing"

	"crewboard-api/domain"
)

func registerTestUser(t *testing.T, s *Store, email string) domain.User {
	t.Helper()
	u, err := s.RegisterUser(context.Background(), email, "password123", "")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func TestCreateGroupMakesOwnerSoleMember(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	owner := registerTestUser(t, s, "owner@x.com")

	g, err := s.CreateGroup(ctx, owner.ID, "the crew")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.OwnerID != owner.ID || g.Name != "the crew" {
		t.Fatalf("unexpected group: %+v", g)
	}

	member, err := s.IsMember(ctx, g.ID, owner.ID)
	if err != nil || !member {
		t.Fatalf("owner must be a member: %v %v", member, err)
	}
	groups, err := s.ListGroups(ctx, owner.ID)
	if err != nil || len(groups) != 1 || groups[0].ID != g.ID {
		t.Fatalf("expected owner index to list the group: %+v %v", groups, err)
	}
}

func TestInviteAcceptFlow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	owner := registerTestUser(t, s, "owner@x.com")
	guest := registerTestUser(t, s, "guest@x.com")

	g, err := s.CreateGroup(ctx, owner.ID, "crew")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Invite(ctx, g.ID, owner.ID, guest.Username); err != nil {
		t.Fatalf("invite: %v", err)
	}

	invites, err := s.ListInvites(ctx, guest.ID)
	if err != nil || len(invites) != 1 || invites[0].ID != g.ID {
		t.Fatalf("expected pending invite: %+v %v", invites, err)
	}

	if err := s.AcceptInvite(ctx, g.ID, guest.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	member, err := s.IsMember(ctx, g.ID, guest.ID)
	if err != nil || !member {
		t.Fatalf("guest should be a member: %v %v", member, err)
	}
	invites, _ = s.ListInvites(ctx, guest.ID)
	if len(invites) != 0 {
		t.Fatalf("invite must be cleared after accept: %+v", invites)
	}
}

func TestInviteErrors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	owner := registerTestUser(t, s, "owner@x.com")
	outsider := registerTestUser(t, s, "outsider@x.com")

	g, err := s.CreateGroup(ctx, owner.ID, "crew")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Invite(ctx, g.ID, owner.ID, "ghost_user"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown username, got %v", err)
	}
	if err := s.Invite(ctx, g.ID, owner.ID, owner.Username); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for existing member, got %v", err)
	}
	if err := s.Invite(ctx, g.ID, outsider.ID, owner.Username); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-member requester, got %v", err)
	}
}

func TestDeclineInviteClearsBothSides(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	owner := registerTestUser(t, s, "owner@x.com")
	guest := registerTestUser(t, s, "guest@x.com")

	g, _ := s.CreateGroup(ctx, owner.ID, "crew")
	if err := s.Invite(ctx, g.ID, owner.ID, guest.Username); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := s.DeclineInvite(ctx, g.ID, guest.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}

	if member, _ := s.IsMember(ctx, g.ID, guest.ID); member {
		t.Fatalf("declined invitee must not be a member")
	}
	invites, _ := s.ListInvites(ctx, guest.ID)
	if len(invites) != 0 {
		t.Fatalf("invite index must be cleared: %+v", invites)
	}
	if err := s.AcceptInvite(ctx, g.ID, guest.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound accepting a declined invite, got %v", err)
	}
}

func TestKickRules(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	owner := registerTestUser(t, s, "owner@x.com")
	guest := registerTestUser(t, s, "guest@x.com")

	g, _ := s.CreateGroup(ctx, owner.ID, "crew")
	if err := s.Invite(ctx, g.ID, owner.ID, guest.Username); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := s.AcceptInvite(ctx, g.ID, guest.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := s.Kick(ctx, g.ID, guest.ID, owner.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner kick, got %v", err)
	}
	if err := s.Kick(ctx, g.ID, owner.ID, owner.ID); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self-kick, got %v", err)
	}
	if err := s.Kick(ctx, g.ID, owner.ID, guest.ID); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if member, _ := s.IsMember(ctx, g.ID, guest.ID); member {
		t.Fatalf("kicked user must not be a member")
	}
	groups, _ := s.ListGroups(ctx, guest.ID)
	if len(groups) != 0 {
		t.Fatalf("kicked user's index must be cleared: %+v", groups)
	}
}

func TestLeaveRules(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	owner := registerTestUser(t, s, "owner@x.com")
	guest := registerTestUser(t, s, "guest@x.com")

	g, _ := s.CreateGroup(ctx, owner.ID, "crew")
	if err := s.Invite(ctx, g.ID, owner.ID, guest.Username); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := s.AcceptInvite(ctx, g.ID, guest.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := s.Leave(ctx, g.ID, owner.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for owner leave, got %v", err)
	}
	if err := s.Leave(ctx, g.ID, guest.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if member, _ := s.IsMember(ctx, g.ID, guest.ID); member {
		t.Fatalf("left user must not be a member")
	}
}

func TestDeleteGroupCascades(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	owner := registerTestUser(t, s, "owner@x.com")
	member := registerTestUser(t, s, "member@x.com")
	invitee := registerTestUser(t, s, "invitee@x.com")

	g, _ := s.CreateGroup(ctx, owner.ID, "crew")
	if err := s.Invite(ctx, g.ID, owner.ID, member.Username); err != nil {
		t.Fatalf("invite member: %v", err)
	}
	if err := s.AcceptInvite(ctx, g.ID, member.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := s.Invite(ctx, g.ID, owner.ID, invitee.Username); err != nil {
		t.Fatalf("invite invitee: %v", err)
	}

	gOwner := domain.GroupOwner(g.ID)
	if err := s.SaveTasks(ctx, gOwner, []domain.Task{{ID: "t", Kind: domain.KindSimple, CreatedAt: 1}}, false); err != nil {
		t.Fatalf("seed group tasks: %v", err)
	}
	if _, err := s.PostMessage(ctx, g.ID, owner.ID, "hello crew"); err != nil {
		t.Fatalf("post: %v", err)
	}

	if err := s.DeleteGroup(ctx, g.ID, member.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner delete, got %v", err)
	}
	if err := s.DeleteGroup(ctx, g.ID, owner.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetGroup(ctx, g.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected group gone, got %v", err)
	}
	for _, key := range []string{
		groupMembersKey(g.ID), groupInvitesKey(g.ID),
		tasksKey(gOwner), taskOrderKey(gOwner), chatKey(g.ID),
	} {
		if mr.Exists(key) {
			t.Fatalf("expected %s to be deleted", key)
		}
	}
	for _, u := range []domain.User{owner, member} {
		if groups, _ := s.ListGroups(ctx, u.ID); len(groups) != 0 {
			t.Fatalf("membership index of %s must be cleared", u.Username)
		}
	}
	if invites, _ := s.ListInvites(ctx, invitee.ID); len(invites) != 0 {
		t.Fatalf("invite index must be cleared")
	}
}

func TestMembersResolvesUsernames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	owner := registerTestUser(t, s, "owner@x.com")
	guest := registerTestUser(t, s, "guest@x.com")

	g, _ := s.CreateGroup(ctx, owner.ID, "crew")
	if err := s.Invite(ctx, g.ID, owner.ID, guest.Username); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := s.AcceptInvite(ctx, g.ID, guest.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	members, err := s.Members(ctx, g.ID, owner.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	names := make(map[string]bool, len(members))
	for _, m := range members {
		names[m.Username] = true
	}
	if len(members) != 2 || !names[owner.Username] || !names[guest.Username] {
		t.Fatalf("unexpected members: %+v", members)
	}

	outsider := registerTestUser(t, s, "outsider@x.com")
	if _, err := s.Members(ctx, g.ID, outsider.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	s, _ := newTestStore(t)
	owner := registerTestUser(t, s, "owner@x.com")

	if _, err := s.CreateGroup(context.Background(), owner.ID, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
