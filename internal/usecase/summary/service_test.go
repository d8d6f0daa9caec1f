package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mood-diary/internal/domain"
	"mood-diary/internal/usecase/week"
)

type stubEntryRepo struct {
	entries []domain.MoodEntry
}

func (s *stubEntryRepo) Upsert(_ context.Context, e domain.MoodEntry) (domain.MoodEntry, error) {
	return e, nil
}
func (s *stubEntryRepo) GetByID(context.Context, string) (domain.MoodEntry, error) {
	return domain.MoodEntry{}, domain.ErrEntryNotFound
}
func (s *stubEntryRepo) ListRange(context.Context, time.Time, time.Time) ([]domain.MoodEntry, error) {
	return s.entries, nil
}
func (s *stubEntryRepo) Delete(context.Context, string) error           { return nil }
func (s *stubEntryRepo) ListLegacy(context.Context) ([]domain.MoodEntry, error) { return nil, nil }
func (s *stubEntryRepo) UpdateEnergyDelta(context.Context, string, int, string) error {
	return nil
}

type stubSummaryRepo struct {
	saved map[string]domain.WeeklySummary
}

func (s *stubSummaryRepo) Save(_ context.Context, sum domain.WeeklySummary) error {
	s.saved[sum.WeekKey] = sum
	return nil
}

func (s *stubSummaryRepo) Get(_ context.Context, weekKey string) (domain.WeeklySummary, error) {
	sum, ok := s.saved[weekKey]
	if !ok {
		return domain.WeeklySummary{}, domain.ErrSummaryNotFound
	}
	return sum, nil
}

type fakeNarrative struct {
	calls int
}

func (f *fakeNarrative) GenerateReport(context.Context, domain.NarrativeRequest) (domain.NarrativeContent, error) {
	return domain.NarrativeContent{}, domain.ErrNarrativeGeneration
}

func (f *fakeNarrative) GenerateSummary(_ context.Context, req domain.NarrativeRequest) (string, error) {
	f.calls++
	if req.Snapshot.TotalEntries == 0 {
		return "", errors.New("пустой снапшот")
	}
	return "спокойная неделя", nil
}

func weekEntries(t *testing.T, n int) []domain.MoodEntry {
	t.Helper()
	r, err := week.ParseKey("2025-W08", time.UTC)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	delta := -2
	entries := make([]domain.MoodEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, domain.MoodEntry{
			ID:          string(rune('a' + i)),
			Timestamp:   r.Start.Add(time.Duration(10+i) * time.Hour),
			Mood:        "calm",
			EnergyDelta: &delta,
		})
	}
	return entries
}

func TestGenerateAndGet(t *testing.T) {
	narrative := &fakeNarrative{}
	repo := &stubSummaryRepo{saved: make(map[string]domain.WeeklySummary)}
	svc := NewService(&stubEntryRepo{entries: weekEntries(t, 3)}, repo, narrative, zerolog.Nop(), time.UTC, 3)

	sum, err := svc.Generate(context.Background(), "2025-W08")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if sum.Content != "спокойная неделя" {
		t.Fatalf("неожиданный итог: %q", sum.Content)
	}

	got, err := svc.Get(context.Background(), "2025-W08")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.Content != sum.Content {
		t.Fatalf("итог не сохранился")
	}
}

func TestGenerateInsufficientData(t *testing.T) {
	narrative := &fakeNarrative{}
	repo := &stubSummaryRepo{saved: make(map[string]domain.WeeklySummary)}
	svc := NewService(&stubEntryRepo{entries: weekEntries(t, 1)}, repo, narrative, zerolog.Nop(), time.UTC, 3)

	_, err := svc.Generate(context.Background(), "2025-W08")
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("ожидали ErrInsufficientData, получили %v", err)
	}
	if narrative.calls != 0 {
		t.Fatalf("внешний вызов не должен выполняться при нехватке данных")
	}
}

func TestGetUnknownWeek(t *testing.T) {
	repo := &stubSummaryRepo{saved: make(map[string]domain.WeeklySummary)}
	svc := NewService(&stubEntryRepo{}, repo, &fakeNarrative{}, zerolog.Nop(), time.UTC, 3)

	_, err := svc.Get(context.Background(), "2025-W01")
	if !errors.Is(err, domain.ErrSummaryNotFound) {
		t.Fatalf("ожидали ErrSummaryNotFound, получили %v", err)
	}
}
