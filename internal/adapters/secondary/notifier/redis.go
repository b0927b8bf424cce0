package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

// RedisNotificationFeed stocke le fil "X a commencé à vous suivre" dans un
// Sorted Set par utilisateur, score = timestamp de l'événement.
type RedisNotificationFeed struct {
	client  *redis.Client
	ttl     time.Duration
	maxSize int64 // capping : on ne garde pas l'infini en RAM
}

func NewRedisNotificationFeed(client *redis.Client) *RedisNotificationFeed {
	return &RedisNotificationFeed{
		client:  client,
		ttl:     24 * 30 * time.Hour,
		maxSize: 200,
	}
}

func (r *RedisNotificationFeed) key(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

func (r *RedisNotificationFeed) PushFollow(ctx context.Context, targetID, actorID string, ev domain.RelationChanged) error {
	key := r.key(targetID)
	member := fmt.Sprintf("FOLLOW:%s", actorID)

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(ev.At.Unix()),
		Member: member,
	})
	pipe.ZRemRangeByRank(ctx, key, 0, -(r.maxSize + 1))
	pipe.Expire(ctx, key, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: push follow notification: %w", err)
	}
	return nil
}

func (r *RedisNotificationFeed) List(ctx context.Context, userID string, limit int64) ([]domain.Notification, error) {
	results, err := r.client.ZRevRangeWithScores(ctx, r.key(userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list notifications: %w", err)
	}

	items := make([]domain.Notification, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}

		// Format attendu : "FOLLOW:actor-uuid"
		actorID, found := strings.CutPrefix(member, "FOLLOW:")
		if !found {
			continue // format inconnu, on ignore
		}

		items = append(items, domain.Notification{
			ActorID: actorID,
			At:      time.Unix(int64(z.Score), 0).UTC(),
		})
	}

	return items, nil
}
