package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mood-diary/internal/domain"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "diary", "mood.db"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteEntryLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	entries := store.Entries()

	delta := -5
	end := time.Date(2025, 2, 17, 11, 30, 0, 0, time.UTC)
	saved, err := entries.Upsert(ctx, domain.MoodEntry{
		Timestamp:    time.Date(2025, 2, 17, 10, 0, 0, 0, time.UTC),
		Mood:         "tired",
		Content:      "тяжёлое утро",
		Tags:         []string{"работа"},
		EnergyDelta:  &delta,
		EndTimestamp: &end,
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("id не сгенерирован")
	}

	got, err := entries.GetByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.Mood != "tired" || got.EffectiveDelta() != -5 || got.DurationMinutes() != 90 {
		t.Fatalf("запись искажена при чтении: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "работа" {
		t.Fatalf("теги искажены: %+v", got.Tags)
	}

	listed, err := entries.ListRange(ctx,
		time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("ожидали 1 запись, получили %d", len(listed))
	}

	if err := entries.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := entries.GetByID(ctx, saved.ID); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("ожидали ErrEntryNotFound, получили %v", err)
	}
	if err := entries.Delete(ctx, saved.ID); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("повторное удаление должно вернуть ErrEntryNotFound, получили %v", err)
	}
}

func TestSQLiteLegacyMigrationFlow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	entries := store.Entries()

	legacy, err := entries.Upsert(ctx, domain.MoodEntry{
		Timestamp:    time.Date(2024, 11, 4, 9, 0, 0, 0, time.UTC),
		Mood:         "happy",
		MoodScore:    8,
		ScoreVersion: domain.ScoreVersionV1,
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	found, err := entries.ListLegacy(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(found) != 1 || found[0].ID != legacy.ID {
		t.Fatalf("легаси-запись не найдена: %+v", found)
	}

	if err := entries.UpdateEnergyDelta(ctx, legacy.ID, 6, domain.ScoreVersionV2); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	found, err = entries.ListLegacy(ctx)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("мигрированная запись осталась в легаси-выборке")
	}

	got, err := entries.GetByID(ctx, legacy.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.EffectiveDelta() != 6 || got.ScoreVersion != domain.ScoreVersionV2 {
		t.Fatalf("миграция не применилась: %+v", got)
	}
}

func TestSQLiteReportLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	reports := store.Reports()

	start := time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC)
	rep := domain.WeeklyReport{
		ID:          "report_2025-W08_1",
		WeekKey:     "2025-W08",
		WeekRange:   domain.WeekRange{Start: start, End: start.AddDate(0, 0, 6)},
		GeneratedAt: time.Now(),
		Content: domain.ReportContent{
			Snapshot:    domain.ReportSnapshot{TotalEntries: 4, DominantMood: "calm", EnergyTrend: domain.TrendFlat},
			Observation: domain.Observation{Headline: "ровная неделя"},
			Experiment:  domain.Experiment{Title: "прогулка после обеда"},
		},
	}
	if err := reports.Save(ctx, rep); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	got, err := reports.Get(ctx, "2025-W08")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.Content.Snapshot.TotalEntries != 4 || got.Content.Observation.Headline != "ровная неделя" {
		t.Fatalf("отчёт искажён при чтении: %+v", got.Content)
	}

	viewedAt := time.Date(2025, 2, 23, 21, 0, 0, 0, time.UTC)
	if err := reports.MarkViewed(ctx, "2025-W08", viewedAt); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := reports.MarkViewed(ctx, "2025-W08", viewedAt.Add(time.Hour)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := reports.SetExperimentAccepted(ctx, "2025-W08"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	got, err = reports.Get(ctx, "2025-W08")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.Tracking.ViewedAt == nil || !got.Tracking.ViewedAt.Equal(viewedAt) {
		t.Fatalf("повторный просмотр сдвинул viewedAt: %+v", got.Tracking)
	}
	if !got.Tracking.ExperimentAccepted {
		t.Fatalf("принятие эксперимента не сохранилось")
	}

	// Перегенерация: Save сбрасывает отметки жизненного цикла.
	rep.ID = "report_2025-W08_2"
	if err := reports.Save(ctx, rep); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	got, _ = reports.Get(ctx, "2025-W08")
	if got.Tracking.ViewedAt != nil || got.Tracking.ExperimentAccepted {
		t.Fatalf("перезапись не сбросила tracking: %+v", got.Tracking)
	}

	if _, err := reports.Get(ctx, "2025-W07"); !errors.Is(err, domain.ErrReportNotFound) {
		t.Fatalf("ожидали ErrReportNotFound, получили %v", err)
	}
	if err := reports.MarkViewed(ctx, "2025-W07", time.Now()); !errors.Is(err, domain.ErrReportNotFound) {
		t.Fatalf("ожидали ErrReportNotFound, получили %v", err)
	}
}

func TestSQLiteSummaryRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	summaries := store.Summaries()

	sum := domain.WeeklySummary{WeekKey: "2025-W08", Content: "спокойная неделя", CreatedAt: time.Now()}
	if err := summaries.Save(ctx, sum); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	got, err := summaries.Get(ctx, "2025-W08")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.Content != sum.Content {
		t.Fatalf("итог искажён: %q", got.Content)
	}
	if _, err := summaries.Get(ctx, "2025-W01"); !errors.Is(err, domain.ErrSummaryNotFound) {
		t.Fatalf("ожидали ErrSummaryNotFound, получили %v", err)
	}
}

func TestSQLiteListRangeFractionalSecondsOnBoundary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	entries := store.Entries()

	dayStart := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	seed := func(id string, ts time.Time) {
		t.Helper()
		if _, err := entries.Upsert(ctx, domain.MoodEntry{ID: id, Timestamp: ts, Mood: "calm"}); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	// Доли секунды сразу после границ полуинтервала.
	seed("inside", dayStart.Add(500*time.Millisecond))
	seed("outside", dayStart.AddDate(0, 0, 1).Add(500*time.Millisecond))

	got, err := entries.ListRange(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 1 || got[0].ID != "inside" {
		t.Fatalf("запись 00:00:00.5 того же дня должна попасть в выборку, получили %+v", got)
	}
	if !got[0].Timestamp.Equal(dayStart.Add(500 * time.Millisecond)) {
		t.Fatalf("доли секунды потеряны при чтении: %v", got[0].Timestamp)
	}
}
