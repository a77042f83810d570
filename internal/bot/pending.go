package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/kvstore"
	"github.com/xaenox/planner-bot/internal/models"
)

// pendingTTL is how long a parsed event waits for the user to confirm it.
const pendingTTL = 30 * time.Minute

// pendingEvent is a parsed event awaiting user confirmation, stored in the
// kv store so confirmation survives a restart.
type pendingEvent struct {
	UserID     int64                `json:"user_id"`
	ChatID     int64                `json:"chat_id"`
	Content    models.ParsedContent `json:"content"`
	Conference string               `json:"conference,omitempty"`
}

func pendingKey(id string) string {
	return "pending:event:" + id
}

func (b *Bot) savePending(ctx context.Context, p pendingEvent) (string, error) {
	id := uuid.New().String()

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode pending event: %w", err)
	}
	if err := b.store.SetWithTTL(ctx, pendingKey(id), string(data), pendingTTL); err != nil {
		return "", fmt.Errorf("failed to save pending event: %w", err)
	}
	return id, nil
}

func (b *Bot) loadPending(ctx context.Context, id string) (pendingEvent, error) {
	var p pendingEvent

	data, err := b.store.Get(ctx, pendingKey(id))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return p, fmt.Errorf("failed to decode pending event: %w", err)
	}
	return p, nil
}

func (b *Bot) deletePending(ctx context.Context, id string) {
	if err := b.store.Del(ctx, pendingKey(id)); err != nil && err != kvstore.ErrNotFound {
		b.logger.Warn("Failed to delete pending event", zap.Error(err))
	}
}
