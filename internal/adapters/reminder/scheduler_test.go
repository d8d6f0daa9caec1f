package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mood-diary/internal/domain"
)

type memQueue struct {
	jobs chan domain.ReminderJob
}

func newMemQueue() *memQueue {
	return &memQueue{jobs: make(chan domain.ReminderJob, 8)}
}

func (q *memQueue) Enqueue(_ context.Context, job domain.ReminderJob) error {
	q.jobs <- job
	return nil
}

func (q *memQueue) Pop(ctx context.Context) (domain.ReminderJob, error) {
	select {
	case <-ctx.Done():
		return domain.ReminderJob{}, ctx.Err()
	case job := <-q.jobs:
		return job, nil
	}
}

func TestScheduleImmediate(t *testing.T) {
	queue := newMemQueue()
	s := NewQueueScheduler(queue, time.UTC)
	now := time.Date(2025, 2, 23, 20, 5, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.ScheduleReminder(context.Background(), "Недельный отчёт готов", 0); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	job := <-queue.jobs
	if job.Kind != domain.ReminderKindReportReady {
		t.Fatalf("ожидали report_ready, получили %s", job.Kind)
	}
	if !job.FireAt.Equal(now) {
		t.Fatalf("немедленное напоминание должно срабатывать сразу: %v", job.FireAt)
	}
}

func TestScheduleOffsetMorning(t *testing.T) {
	queue := newMemQueue()
	s := NewQueueScheduler(queue, time.UTC)
	s.now = func() time.Time { return time.Date(2025, 2, 23, 20, 5, 0, 0, time.UTC) }

	if err := s.ScheduleReminder(context.Background(), "среда без встреч", 3); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	job := <-queue.jobs
	if job.Kind != domain.ReminderKindExperiment {
		t.Fatalf("ожидали experiment, получили %s", job.Kind)
	}
	want := time.Date(2025, 2, 26, 9, 0, 0, 0, time.UTC)
	if !job.FireAt.Equal(want) {
		t.Fatalf("ожидали %v, получили %v", want, job.FireAt)
	}
}

type recordingSender struct {
	sent chan domain.ReminderJob
	err  error
}

func (r *recordingSender) Send(job domain.ReminderJob) error {
	r.sent <- job
	return r.err
}

func TestWorkerDeliversDueJob(t *testing.T) {
	queue := newMemQueue()
	sender := &recordingSender{sent: make(chan domain.ReminderJob, 2)}
	w := NewWorker(queue, sender, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	job := domain.ReminderJob{Kind: domain.ReminderKindReportReady, Title: "Недельный отчёт готов", FireAt: time.Now().Add(-time.Minute)}
	if err := queue.Enqueue(ctx, job); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	select {
	case got := <-sender.sent:
		if got.Title != job.Title {
			t.Fatalf("доставлено не то задание: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("воркер не доставил задание")
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
}

func TestWorkerContinuesAfterSendError(t *testing.T) {
	queue := newMemQueue()
	sender := &recordingSender{sent: make(chan domain.ReminderJob, 2), err: errors.New("сеть недоступна")}
	w := NewWorker(queue, sender, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	past := time.Now().Add(-time.Minute)
	_ = queue.Enqueue(ctx, domain.ReminderJob{Kind: domain.ReminderKindExperiment, Title: "первое", FireAt: past})
	_ = queue.Enqueue(ctx, domain.ReminderJob{Kind: domain.ReminderKindExperiment, Title: "второе", FireAt: past})

	for i := 0; i < 2; i++ {
		select {
		case <-sender.sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("воркер остановился после ошибки доставки")
		}
	}
}
