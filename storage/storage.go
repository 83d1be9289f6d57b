package storage

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const defaultChatLogCap = 500

// Store provides access to all persisted state. It holds no mutable state of
// its own; every request round-trips to Redis, and atomicity comes from
// Redis command semantics (SETNX claims, transactional pipelines).
type Store struct {
	rdb        *redis.Client
	chatLogCap int
	bcryptCost int
}

// Options tunes a Store. Zero values pick production defaults.
type Options struct {
	ChatLogCap int
	BcryptCost int
}

// New creates a Store backed by the given Redis client.
func New(client *redis.Client, opts Options) *Store {
	if client == nil {
		panic("storage.New: redis client is nil")
	}
	if opts.ChatLogCap <= 0 {
		opts.ChatLogCap = defaultChatLogCap
	}
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Store{rdb: client, chatLogCap: opts.ChatLogCap, bcryptCost: opts.BcryptCost}
}

// ParseRedisOptions accepts either a redis URL or the comma-separated
// "host:port,password=...,ssl=true" connection string form.
func ParseRedisOptions(connStr string) (*redis.Options, error) {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts, nil
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

// Ping verifies backend connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Key namespaces. Owner keys double as the user/group record keys, so the
// task keys below add their own prefix instead.
func userKey(userID string) string        { return "user:" + userID }
func emailKey(email string) string        { return "email:" + email }
func usernameKey(name string) string      { return "username:" + name }
func legacyUserKey(email string) string   { return "legacy:user:" + email }
func tasksKey(ownerKey string) string     { return "tasks:" + ownerKey }
func taskOrderKey(ownerKey string) string { return "taskorder:" + ownerKey }
func groupKey(groupID string) string      { return "group:" + groupID }
func groupMembersKey(id string) string    { return "group:" + id + ":members" }
func groupInvitesKey(id string) string    { return "group:" + id + ":invites" }
func userGroupsKey(userID string) string  { return "user:" + userID + ":groups" }
func userInvitesKey(userID string) string { return "user:" + userID + ":invites" }
func chatKey(groupID string) string       { return "chat:" + groupID }

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
