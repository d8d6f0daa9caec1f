package reminder

import (
	"context"
	"fmt"
	"time"

	"mood-diary/internal/domain"
)

// Час доставки отложенных напоминаний.
const deliveryHour = 9

// QueueScheduler реализует планировщик напоминаний поверх очереди заданий.
// Сам он ничего не доставляет: вычисляет время срабатывания и публикует
// задание, доставкой занимается воркер.
type QueueScheduler struct {
	queue domain.ReminderQueue
	loc   *time.Location
	now   func() time.Time
}

// NewQueueScheduler создаёт планировщик.
func NewQueueScheduler(queue domain.ReminderQueue, loc *time.Location) *QueueScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &QueueScheduler{queue: queue, loc: loc, now: time.Now}
}

// ScheduleReminder публикует напоминание. Нулевой offset означает
// немедленную доставку, положительный — утро через offset дней.
func (s *QueueScheduler) ScheduleReminder(ctx context.Context, title string, dayOffset int) error {
	now := s.now().In(s.loc)
	fireAt := now
	if dayOffset > 0 {
		day := now.AddDate(0, 0, dayOffset)
		fireAt = time.Date(day.Year(), day.Month(), day.Day(), deliveryHour, 0, 0, 0, s.loc)
	}
	kind := domain.ReminderKindReportReady
	if dayOffset > 0 {
		kind = domain.ReminderKindExperiment
	}
	job := domain.ReminderJob{
		Kind:   kind,
		Title:  title,
		FireAt: fireAt,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("постановка напоминания: %w", err)
	}
	return nil
}
