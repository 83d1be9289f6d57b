package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"crewboard-api/domain"
)

const (
	groupFieldName    = "name"
	groupFieldOwner   = "owner"
	groupFieldCreated = "created"
)

// CreateGroup allocates a group with ownerID as its sole member. Metadata,
// the member set and the owner's membership index are written in one batch.
func (s *Store) CreateGroup(ctx context.Context, ownerID, name string) (domain.Group, error) {
	if !domain.ValidGroupName(name) {
		return domain.Group{}, fmt.Errorf("%w: malformed group name", domain.ErrInvalidInput)
	}
	g := domain.Group{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: nowMillis(),
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, groupKey(g.ID),
			groupFieldName, g.Name,
			groupFieldOwner, g.OwnerID,
			groupFieldCreated, strconv.FormatInt(g.CreatedAt, 10))
		pipe.SAdd(ctx, groupMembersKey(g.ID), ownerID)
		pipe.SAdd(ctx, userGroupsKey(ownerID), g.ID)
		return nil
	})
	if err != nil {
		return domain.Group{}, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

// GetGroup loads group metadata.
func (s *Store) GetGroup(ctx context.Context, groupID string) (domain.Group, error) {
	m, err := s.rdb.HGetAll(ctx, groupKey(groupID)).Result()
	if err != nil {
		return domain.Group{}, fmt.Errorf("read group %s: %w", groupID, err)
	}
	if len(m) == 0 {
		return domain.Group{}, fmt.Errorf("%w: group %s", domain.ErrNotFound, groupID)
	}
	created, _ := strconv.ParseInt(m[groupFieldCreated], 10, 64)
	return domain.Group{
		ID:        groupID,
		Name:      m[groupFieldName],
		OwnerID:   m[groupFieldOwner],
		CreatedAt: created,
	}, nil
}

// IsMember is the membership gate every group-scoped task and chat operation
// checks before doing anything else. The owner is always a member because
// CreateGroup adds them and Leave refuses owners.
func (s *Store) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, groupMembersKey(groupID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// Invite adds the named user to the group's pending-invite set and the
// user's own invite index. Requester must be a member.
func (s *Store) Invite(ctx context.Context, groupID, requesterID, targetUsername string) error {
	if err := s.requireMember(ctx, groupID, requesterID); err != nil {
		return err
	}
	targetID, err := s.ResolveUsername(ctx, targetUsername)
	if err != nil {
		return err
	}
	member, err := s.IsMember(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if member {
		return fmt.Errorf("%w: already a member", domain.ErrConflict)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, groupInvitesKey(groupID), targetID)
		pipe.SAdd(ctx, userInvitesKey(targetID), groupID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record invite: %w", err)
	}
	return nil
}

// AcceptInvite moves the user from the invite sets to the member sets.
func (s *Store) AcceptInvite(ctx context.Context, groupID, userID string) error {
	if err := s.requireInvite(ctx, groupID, userID); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, groupInvitesKey(groupID), userID)
		pipe.SRem(ctx, userInvitesKey(userID), groupID)
		pipe.SAdd(ctx, groupMembersKey(groupID), userID)
		pipe.SAdd(ctx, userGroupsKey(userID), groupID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	return nil
}

// DeclineInvite clears both invite-side entries.
func (s *Store) DeclineInvite(ctx context.Context, groupID, userID string) error {
	if err := s.requireInvite(ctx, groupID, userID); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, groupInvitesKey(groupID), userID)
		pipe.SRem(ctx, userInvitesKey(userID), groupID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	return nil
}

// Kick removes a member. Only the owner may kick, and not themselves.
func (s *Store) Kick(ctx context.Context, groupID, requesterID, targetID string) error {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.OwnerID != requesterID {
		return fmt.Errorf("%w: only the owner can remove members", domain.ErrForbidden)
	}
	if targetID == requesterID {
		return fmt.Errorf("%w: owner cannot kick themselves", domain.ErrInvalidInput)
	}
	member, err := s.IsMember(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a member", domain.ErrNotFound)
	}
	return s.removeMember(ctx, groupID, targetID)
}

// Leave removes the caller from the group. Owners must delete instead.
func (s *Store) Leave(ctx context.Context, groupID, userID string) error {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.OwnerID == userID {
		return fmt.Errorf("%w: owner must delete the group instead of leaving", domain.ErrConflict)
	}
	member, err := s.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a member", domain.ErrNotFound)
	}
	return s.removeMember(ctx, groupID, userID)
}

func (s *Store) removeMember(ctx context.Context, groupID, userID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, groupMembersKey(groupID), userID)
		pipe.SRem(ctx, userGroupsKey(userID), groupID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// DeleteGroup destroys the group and everything under it: back-references in
// every member's and invitee's indices, metadata, both sets, the task
// collection and the chat log. Owner only.
func (s *Store) DeleteGroup(ctx context.Context, groupID, requesterID string) error {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.OwnerID != requesterID {
		return fmt.Errorf("%w: only the owner can delete the group", domain.ErrForbidden)
	}

	members, err := s.rdb.SMembers(ctx, groupMembersKey(groupID)).Result()
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	invitees, err := s.rdb.SMembers(ctx, groupInvitesKey(groupID)).Result()
	if err != nil {
		return fmt.Errorf("list invitees: %w", err)
	}

	owner := domain.GroupOwner(groupID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range members {
			pipe.SRem(ctx, userGroupsKey(id), groupID)
		}
		for _, id := range invitees {
			pipe.SRem(ctx, userInvitesKey(id), groupID)
		}
		pipe.Del(ctx,
			groupKey(groupID),
			groupMembersKey(groupID),
			groupInvitesKey(groupID),
			tasksKey(owner),
			taskOrderKey(owner),
			chatKey(groupID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// ListGroups returns the groups the user belongs to.
func (s *Store) ListGroups(ctx context.Context, userID string) ([]domain.Group, error) {
	return s.groupsFromIndex(ctx, userGroupsKey(userID))
}

// ListInvites returns the groups the user is invited to.
func (s *Store) ListInvites(ctx context.Context, userID string) ([]domain.Group, error) {
	return s.groupsFromIndex(ctx, userInvitesKey(userID))
}

func (s *Store) groupsFromIndex(ctx context.Context, indexKey string) ([]domain.Group, error) {
	ids, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read group index: %w", err)
	}
	groups := make([]domain.Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.GetGroup(ctx, id)
		if err != nil {
			// A cascade delete may have raced this read; skip the dangling id.
			continue
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Members lists the group's members with usernames resolved at read time.
// Requester must be a member.
func (s *Store) Members(ctx context.Context, groupID, requesterID string) ([]domain.Member, error) {
	if err := s.requireMember(ctx, groupID, requesterID); err != nil {
		return nil, err
	}
	ids, err := s.rdb.SMembers(ctx, groupMembersKey(groupID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, userKey(id), fieldUsername)
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("resolve member names: %w", err)
	}
	members := make([]domain.Member, 0, len(ids))
	for i, id := range ids {
		name, _ := cmds[i].Result()
		members = append(members, domain.Member{ID: id, Username: name})
	}
	return members, nil
}

func (s *Store) requireMember(ctx context.Context, groupID, userID string) error {
	ok, err := s.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		// Forbidden rather than NotFound so group existence is not leaked.
		return fmt.Errorf("%w: not a member of this group", domain.ErrForbidden)
	}
	return nil
}

func (s *Store) requireInvite(ctx context.Context, groupID, userID string) error {
	ok, err := s.rdb.SIsMember(ctx, groupInvitesKey(groupID), userID).Result()
	if err != nil {
		return fmt.Errorf("check invite: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: no pending invite", domain.ErrNotFound)
	}
	return nil
}
