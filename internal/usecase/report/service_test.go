package report

import (
	"context"
	"errors"
	"sync"
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

type stubReportRepo struct {
	mu      sync.Mutex
	reports map[string]domain.WeeklyReport
	saves   int
}

func newStubReportRepo() *stubReportRepo {
	return &stubReportRepo{reports: make(map[string]domain.WeeklyReport)}
}

func (s *stubReportRepo) Save(_ context.Context, r domain.WeeklyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.WeekKey] = r
	s.saves++
	return nil
}

func (s *stubReportRepo) Get(_ context.Context, weekKey string) (domain.WeeklyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[weekKey]
	if !ok {
		return domain.WeeklyReport{}, domain.ErrReportNotFound
	}
	return r, nil
}

func (s *stubReportRepo) MarkViewed(_ context.Context, weekKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[weekKey]
	if !ok {
		return domain.ErrReportNotFound
	}
	if r.Tracking.ViewedAt == nil {
		r.Tracking.ViewedAt = &at
		s.reports[weekKey] = r
	}
	return nil
}

func (s *stubReportRepo) SetExperimentAccepted(_ context.Context, weekKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[weekKey]
	if !ok {
		return domain.ErrReportNotFound
	}
	r.Tracking.ExperimentAccepted = true
	s.reports[weekKey] = r
	return nil
}

func (s *stubReportRepo) Delete(_ context.Context, weekKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, weekKey)
	return nil
}

type fakeNarrative struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeNarrative) GenerateReport(context.Context, domain.NarrativeRequest) (domain.NarrativeContent, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return domain.NarrativeContent{}, f.err
	}
	return domain.NarrativeContent{
		Observation: domain.Observation{Headline: "наблюдение", Body: "тело"},
		Experiment:  domain.Experiment{Title: "среда без встреч", Instruction: "инструкция", Duration: "неделя"},
	}, nil
}

func (f *fakeNarrative) GenerateSummary(context.Context, domain.NarrativeRequest) (string, error) {
	return "итог", nil
}

func (f *fakeNarrative) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecommender struct{}

func (fakeRecommender) Match([]domain.MoodEntry, string) domain.Recommendation {
	return domain.Recommendation{Type: "book", Title: "Поток", Why: "подходит"}
}

type fakeScheduler struct {
	called chan string
}

func (f *fakeScheduler) ScheduleReminder(_ context.Context, title string, _ int) error {
	select {
	case f.called <- title:
	default:
	}
	return nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Set(key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("нет значения")
	}
	return v, nil
}

const testWeek = "2025-W08"

func testEntries(t *testing.T, n int) []domain.MoodEntry {
	t.Helper()
	r, err := week.ParseKey(testWeek, time.UTC)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	entries := make([]domain.MoodEntry, 0, n)
	for i := 0; i < n; i++ {
		delta := -3
		entries = append(entries, domain.MoodEntry{
			ID:          string(rune('a' + i)),
			Timestamp:   r.Start.AddDate(0, 0, i%7).Add(time.Duration(9+i) * time.Hour),
			Mood:        "tired",
			EnergyDelta: &delta,
		})
	}
	return entries
}

func newTestService(entries *stubEntryRepo, reports *stubReportRepo, narrative *fakeNarrative, cache domain.Cache) *Service {
	return NewService(entries, reports, narrative, fakeRecommender{}, nil, cache, zerolog.Nop(), time.UTC, 3)
}

func TestGenerateInsufficientData(t *testing.T) {
	narrative := &fakeNarrative{}
	reports := newStubReportRepo()
	svc := newTestService(&stubEntryRepo{entries: testEntries(t, 2)}, reports, narrative, nil)

	_, err := svc.Generate(context.Background(), testWeek)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("ожидали ErrInsufficientData, получили %v", err)
	}
	if narrative.callCount() != 0 {
		t.Fatalf("внешний вызов не должен выполняться при нехватке данных")
	}
	if reports.saves != 0 {
		t.Fatalf("отчёт не должен сохраняться при нехватке данных")
	}
}

func TestGenerateAssemblesReport(t *testing.T) {
	narrative := &fakeNarrative{}
	reports := newStubReportRepo()
	svc := newTestService(&stubEntryRepo{entries: testEntries(t, 4)}, reports, narrative, nil)

	rep, err := svc.Generate(context.Background(), testWeek)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rep.WeekKey != testWeek {
		t.Fatalf("ожидали weekKey %s, получили %s", testWeek, rep.WeekKey)
	}
	if rep.Content.Snapshot.TotalEntries != 4 {
		t.Fatalf("снапшот не посчитан: %+v", rep.Content.Snapshot)
	}
	if rep.Content.Observation.Headline == "" || rep.Content.Experiment.Title == "" {
		t.Fatalf("текстовые блоки не заполнены")
	}
	// Рекомендация берётся у локального подборщика, если её не дал LLM.
	if rep.Content.Recommendation.Title != "Поток" {
		t.Fatalf("ожидали рекомендацию подборщика, получили %+v", rep.Content.Recommendation)
	}
	if rep.Tracking.ViewedAt != nil || rep.Tracking.ExperimentAccepted {
		t.Fatalf("новый отчёт должен иметь пустой tracking")
	}
}

func TestGenerateUsesAnalysisCache(t *testing.T) {
	narrative := &fakeNarrative{}
	reports := newStubReportRepo()
	cache := newMemCache()
	svc := newTestService(&stubEntryRepo{entries: testEntries(t, 3)}, reports, narrative, cache)

	if _, err := svc.Generate(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.Generate(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if narrative.callCount() != 1 {
		t.Fatalf("ожидали 1 внешний вызов при неизменных записях, получили %d", narrative.callCount())
	}
}

func TestRegenerateBypassesCacheAndResetsTracking(t *testing.T) {
	narrative := &fakeNarrative{}
	reports := newStubReportRepo()
	cache := newMemCache()
	svc := newTestService(&stubEntryRepo{entries: testEntries(t, 3)}, reports, narrative, cache)

	if _, err := svc.Generate(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.MarkViewed(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	rep, err := svc.Regenerate(context.Background(), testWeek)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if narrative.callCount() != 2 {
		t.Fatalf("перегенерация должна миновать кэш, вызовов %d", narrative.callCount())
	}
	if rep.Tracking.ViewedAt != nil {
		t.Fatalf("перегенерация должна сбрасывать tracking")
	}
}

func TestGenerateFailurePreservesExistingReport(t *testing.T) {
	narrative := &fakeNarrative{}
	reports := newStubReportRepo()
	svc := newTestService(&stubEntryRepo{entries: testEntries(t, 3)}, reports, narrative, nil)

	first, err := svc.Generate(context.Background(), testWeek)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	narrative.err = domain.ErrNarrativeGeneration
	if _, err := svc.Regenerate(context.Background(), testWeek); !errors.Is(err, domain.ErrNarrativeGeneration) {
		t.Fatalf("ожидали ErrNarrativeGeneration, получили %v", err)
	}
	stored, err := reports.Get(context.Background(), testWeek)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if stored.ID != first.ID {
		t.Fatalf("сбой генерации перезаписал существующий отчёт")
	}
}

func TestMarkViewedIdempotent(t *testing.T) {
	narrative := &fakeNarrative{}
	reports := newStubReportRepo()
	svc := newTestService(&stubEntryRepo{entries: testEntries(t, 3)}, reports, narrative, nil)

	if _, err := svc.Generate(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.MarkViewed(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	first, _ := reports.Get(context.Background(), testWeek)

	time.Sleep(5 * time.Millisecond)
	if err := svc.MarkViewed(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, _ := reports.Get(context.Background(), testWeek)
	if !first.Tracking.ViewedAt.Equal(*second.Tracking.ViewedAt) {
		t.Fatalf("повторный просмотр изменил viewedAt")
	}
}

func TestAcceptExperimentNotFound(t *testing.T) {
	svc := newTestService(&stubEntryRepo{}, newStubReportRepo(), &fakeNarrative{}, nil)
	err := svc.AcceptExperiment(context.Background(), "2025-W06")
	if !errors.Is(err, domain.ErrReportNotFound) {
		t.Fatalf("ожидали ErrReportNotFound, получили %v", err)
	}
}

func TestAcceptExperimentSchedulesReminder(t *testing.T) {
	narrative := &fakeNarrative{}
	reports := newStubReportRepo()
	scheduler := &fakeScheduler{called: make(chan string, 1)}
	svc := NewService(&stubEntryRepo{entries: testEntries(t, 3)}, reports, narrative, fakeRecommender{}, scheduler, nil, zerolog.Nop(), time.UTC, 3)

	if _, err := svc.Generate(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.AcceptExperiment(context.Background(), testWeek); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	select {
	case title := <-scheduler.called:
		if title != "среда без встреч" {
			t.Fatalf("напоминание с неожиданным заголовком: %s", title)
		}
	case <-time.After(time.Second):
		t.Fatalf("напоминание не запланировано")
	}
	stored, _ := reports.Get(context.Background(), testWeek)
	if !stored.Tracking.ExperimentAccepted {
		t.Fatalf("принятие эксперимента не сохранилось")
	}
}

func TestGetStatusWithoutReport(t *testing.T) {
	svc := newTestService(&stubEntryRepo{entries: testEntries(t, 2)}, newStubReportRepo(), &fakeNarrative{}, nil)

	status, err := svc.GetStatus(context.Background(), time.Date(2025, 2, 19, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if status.WeekKey != testWeek {
		t.Fatalf("ожидали %s, получили %s", testWeek, status.WeekKey)
	}
	if status.Report != nil {
		t.Fatalf("отчёта быть не должно")
	}
	if status.CanGenerate || status.EntryCount != 2 {
		t.Fatalf("ожидали 2 записи и запрет генерации, получили %+v", status)
	}
	// Неделя давно прошла, окно генерации открыто.
	if !status.IsGenerationTime {
		t.Fatalf("окно генерации прошедшей недели должно быть открыто")
	}
}

func TestFingerprintIgnoresOrder(t *testing.T) {
	entries := testEntries(t, 3)
	shuffled := []domain.MoodEntry{entries[2], entries[0], entries[1]}
	if Fingerprint(entries) != Fingerprint(shuffled) {
		t.Fatalf("отпечаток зависит от порядка записей")
	}
}
