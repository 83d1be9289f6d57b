package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"crewboard-api/domain"
)

const defaultChatFetchLimit = 100

// PostMessage appends a message to the group's chat log and trims the log to
// the configured cap. The sender's current username is captured as a plain
// string so later renames do not rewrite history.
func (s *Store) PostMessage(ctx context.Context, groupID, senderID, text string) (domain.Message, error) {
	if err := s.requireMember(ctx, groupID, senderID); err != nil {
		return domain.Message{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" || len(text) > domain.MaxMessageLen {
		return domain.Message{}, fmt.Errorf("%w: message must be 1-%d characters", domain.ErrInvalidInput, domain.MaxMessageLen)
	}

	sender, err := s.rdb.HGet(ctx, userKey(senderID), fieldUsername).Result()
	if err != nil {
		return domain.Message{}, fmt.Errorf("resolve sender: %w", err)
	}

	msg := domain.Message{
		ID:     uuid.NewString(),
		Sender: sender,
		Text:   text,
		At:     nowMillis(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode message: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, chatKey(groupID), data)
		pipe.LTrim(ctx, chatKey(groupID), int64(-s.chatLogCap), -1)
		return nil
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// GetMessages returns the most recent limit messages in chronological order.
// A caller who is not (or no longer) a member gets an empty list, not an
// error, so a revoked client degrades quietly.
func (s *Store) GetMessages(ctx context.Context, groupID, userID string, limit int) ([]domain.Message, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return []domain.Message{}, nil
		}
		return nil, err
	}
	if limit <= 0 {
		limit = defaultChatFetchLimit
	}
	raw, err := s.rdb.LRange(ctx, chatKey(groupID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat of %s: %w", groupID, err)
	}
	msgs := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
