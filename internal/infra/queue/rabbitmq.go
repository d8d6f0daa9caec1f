package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mood-diary/internal/domain"
	"mood-diary/internal/infra/metrics"
)

// RabbitReminderQueue реализует очередь напоминаний через AMQP.
type RabbitReminderQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitReminderQueue подключается к брокеру и объявляет очередь.
func NewRabbitReminderQueue(amqpURL, queue string) (*RabbitReminderQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url пуст")
	}
	if queue == "" {
		return nil, errors.New("имя очереди пусто")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("подключение к amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("объявление очереди: %w", err)
	}
	return &RabbitReminderQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Close закрывает канал и соединение.
func (q *RabbitReminderQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

// Enqueue публикует задание в очередь.
func (q *RabbitReminderQueue) Enqueue(ctx context.Context, job domain.ReminderJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("сериализация задания: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("публикация задания: %w", err)
	}
	return nil
}

// Pop блокирующе читает задание из очереди.
func (q *RabbitReminderQueue) Pop(ctx context.Context) (domain.ReminderJob, error) {
	deliveries, err := q.consumeChannel()
	if err != nil {
		return domain.ReminderJob{}, err
	}
	select {
	case <-ctx.Done():
		return domain.ReminderJob{}, ctx.Err()
	case delivery, ok := <-deliveries:
		if !ok {
			return domain.ReminderJob{}, errors.New("amqp: канал доставки закрыт")
		}
		var job domain.ReminderJob
		if err := json.Unmarshal(delivery.Body, &job); err != nil {
			_ = delivery.Nack(false, false)
			return domain.ReminderJob{}, fmt.Errorf("распаковка задания: %w", err)
		}
		if err := delivery.Ack(false); err != nil {
			return domain.ReminderJob{}, fmt.Errorf("подтверждение задания: %w", err)
		}
		return job, nil
	}
}

func (q *RabbitReminderQueue) consumeChannel() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("подписка на очередь: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}
