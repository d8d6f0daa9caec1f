package domain

import (
	"context"
	"time"
)

// EntryRepo управляет записями дневника.
type EntryRepo interface {
	Upsert(ctx context.Context, entry MoodEntry) (MoodEntry, error)
	GetByID(ctx context.Context, id string) (MoodEntry, error)
	ListRange(ctx context.Context, from, to time.Time) ([]MoodEntry, error)
	Delete(ctx context.Context, id string) error
	ListLegacy(ctx context.Context) ([]MoodEntry, error)
	UpdateEnergyDelta(ctx context.Context, id string, delta int, version string) error
}

// ReportRepo сохраняет и возвращает недельные отчёты. Save перезаписывает
// отчёт по weekKey целиком: последняя запись побеждает.
type ReportRepo interface {
	Save(ctx context.Context, report WeeklyReport) error
	Get(ctx context.Context, weekKey string) (WeeklyReport, error)
	MarkViewed(ctx context.Context, weekKey string, at time.Time) error
	SetExperimentAccepted(ctx context.Context, weekKey string) error
	Delete(ctx context.Context, weekKey string) error
}

// SummaryRepo хранит свободные текстовые итоги недель.
type SummaryRepo interface {
	Save(ctx context.Context, summary WeeklySummary) error
	Get(ctx context.Context, weekKey string) (WeeklySummary, error)
}

// NarrativeRequest — запрос к внешнему генератору текста.
type NarrativeRequest struct {
	Entries     []MoodEntry
	Snapshot    ReportSnapshot
	Chart       ChartData
	WeekRange   WeekRange
	PriorReport *ReportContent
}

// NarrativeProvider — внешний LLM-коллаборатор. Любой его сбой (сеть,
// битый ответ, rate limit) приходит как единая ErrNarrativeGeneration.
type NarrativeProvider interface {
	GenerateReport(ctx context.Context, req NarrativeRequest) (NarrativeContent, error)
	GenerateSummary(ctx context.Context, req NarrativeRequest) (string, error)
}

// Recommender подбирает рекомендацию недели по записям.
type Recommender interface {
	Match(entries []MoodEntry, dominantMood string) Recommendation
}

// ReminderScheduler планирует напоминание через dayOffset дней.
// Best-effort: сбой планирования не должен ломать вызывающую операцию.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, title string, dayOffset int) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// ReminderQueue — очередь отложенных напоминаний.
type ReminderQueue interface {
	Enqueue(ctx context.Context, job ReminderJob) error
	Pop(ctx context.Context) (ReminderJob, error)
}
