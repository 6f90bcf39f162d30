package events

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

// RedisPublisher publica notificaciones vía Redis PUBLISH, un canal ligero
// para despliegues sin Kafka.
type RedisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		p.log.Error("Error publishing to Redis", zap.String("topic", topic), zap.Error(err))
		return err
	}

	p.log.Debug("Notification published", zap.String("topic", topic))
	return nil
}

// Verificación estática
var _ domain.EventPublisher = (*RedisPublisher)(nil)
