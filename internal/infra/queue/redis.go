package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mood-diary/internal/domain"
)

// RedisReminderQueue реализует очередь напоминаний на базе Redis lists.
type RedisReminderQueue struct {
	client *redis.Client
	key    string
}

// NewRedisReminderQueue создаёт очередь по указанному ключу.
func NewRedisReminderQueue(client *redis.Client, key string) *RedisReminderQueue {
	return &RedisReminderQueue{client: client, key: key}
}

// Enqueue публикует задание в очередь.
func (q *RedisReminderQueue) Enqueue(ctx context.Context, job domain.ReminderJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задания: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("публикация задания: %w", err)
	}
	return nil
}

// Pop блокирующе читает задание из очереди.
func (q *RedisReminderQueue) Pop(ctx context.Context) (domain.ReminderJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ReminderJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ReminderJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ReminderJob{}, err
		}
		if len(res) != 2 {
			return domain.ReminderJob{}, errors.New("redis queue: неожиданный ответ")
		}
		var job domain.ReminderJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.ReminderJob{}, fmt.Errorf("распаковка задания: %w", err)
		}
		return job, nil
	}
}
