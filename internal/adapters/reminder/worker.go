package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"mood-diary/internal/domain"
)

// Sender доставляет одно напоминание получателю.
type Sender interface {
	Send(job domain.ReminderJob) error
}

// Worker разбирает очередь напоминаний: ждёт времени срабатывания
// задания и передаёт его отправителю.
type Worker struct {
	queue  domain.ReminderQueue
	sender Sender
	log    zerolog.Logger
	now    func() time.Time
}

// NewWorker создаёт воркер напоминаний.
func NewWorker(queue domain.ReminderQueue, sender Sender, log zerolog.Logger) *Worker {
	return &Worker{queue: queue, sender: sender, log: log, now: time.Now}
}

// Run обрабатывает задания до отмены контекста. Ошибка доставки одного
// задания не останавливает цикл.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if wait := job.FireAt.Sub(w.now()); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				// Недоставленное задание возвращается в очередь.
				requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := w.queue.Enqueue(requeueCtx, job); err != nil {
					w.log.Error().Err(err).Str("kind", job.Kind).Msg("reminder: задание потеряно при остановке")
				}
				cancel()
				return nil
			case <-timer.C:
			}
		}

		if err := w.sender.Send(job); err != nil {
			w.log.Error().Err(err).Str("kind", job.Kind).Str("title", job.Title).Msg("reminder: доставка не удалась")
			continue
		}
		w.log.Info().Str("kind", job.Kind).Str("title", job.Title).Msg("reminder: напоминание доставлено")
	}
}
