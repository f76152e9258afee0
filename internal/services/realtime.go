package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
)

// Publisher pushes in-app updates to a user's open websocket connections.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// UserChannelPrefix prefixes every per-user pub/sub channel.
const UserChannelPrefix = "user_updates:"

// UserChannel is the redis pub/sub channel relayed by the websocket hub.
func UserChannel(userID uuid.UUID) string {
	return UserChannelPrefix + userID.String()
}

type RedisPublisher struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewRedisPublisher(redisClient *redis.Client, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{redis: redisClient, log: log}
}

// Publish sends a WebSocket update via Redis pub/sub. Delivery is best effort.
func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("failed to encode realtime message", "type", msg.Type, "error", err)
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), data).Err(); err != nil {
		p.log.Warn("failed to publish realtime message", "user_id", userID, "type", msg.Type, "error", err)
	}
}
