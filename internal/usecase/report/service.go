package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mood-diary/internal/domain"
	"mood-diary/internal/infra/metrics"
	"mood-diary/internal/usecase/week"
)

// analysisCacheTTL — срок жизни закэшированных текстовых блоков.
// Кэш чисто ускоряющий: холодный кэш корректен, просто медленнее.
const analysisCacheTTL = 14 * 24 * time.Hour

// Service собирает недельные отчёты и управляет их жизненным циклом.
type Service struct {
	entries    domain.EntryRepo
	reports    domain.ReportRepo
	narrative  domain.NarrativeProvider
	recommend  domain.Recommender
	reminders  domain.ReminderScheduler
	cache      domain.Cache
	log        zerolog.Logger
	loc        *time.Location
	minEntries int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService создаёт сервис отчётов. cache и reminders опциональны.
func NewService(entries domain.EntryRepo, reports domain.ReportRepo, narrative domain.NarrativeProvider, recommend domain.Recommender, reminders domain.ReminderScheduler, cache domain.Cache, log zerolog.Logger, loc *time.Location, minEntries int) *Service {
	if minEntries <= 0 {
		minEntries = 3
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		entries:    entries,
		reports:    reports,
		narrative:  narrative,
		recommend:  recommend,
		reminders:  reminders,
		cache:      cache,
		log:        log,
		loc:        loc,
		minEntries: minEntries,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Status описывает состояние отчёта недели для UI.
type Status struct {
	WeekKey          string
	Report           *domain.WeeklyReport
	CanGenerate      bool
	EntryCount       int
	IsGenerationTime bool
}

// weekLock сериализует генерацию по одному weekKey: параллельные
// перегенерации не должны переплетать частичные записи.
func (s *Service) weekLock(weekKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[weekKey]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[weekKey] = lock
	}
	return lock
}

// Generate строит и сохраняет отчёт за неделю. Если записи не менялись с
// прошлой генерации, текстовые блоки берутся из кэша без внешнего вызова.
func (s *Service) Generate(ctx context.Context, weekKey string) (domain.WeeklyReport, error) {
	return s.generate(ctx, weekKey, false)
}

// Regenerate принудительно пересобирает отчёт, минуя кэш анализа.
// Отметки жизненного цикла (просмотр, принятие эксперимента) сбрасываются:
// они относились к прежнему содержимому.
func (s *Service) Regenerate(ctx context.Context, weekKey string) (domain.WeeklyReport, error) {
	return s.generate(ctx, weekKey, true)
}

func (s *Service) generate(ctx context.Context, weekKey string, force bool) (domain.WeeklyReport, error) {
	weekRange, err := week.ParseKey(weekKey, s.loc)
	if err != nil {
		return domain.WeeklyReport{}, err
	}

	lock := s.weekLock(weekKey)
	lock.Lock()
	defer lock.Unlock()

	from, to := week.Bounds(weekRange)
	entries, err := s.entries.ListRange(ctx, from, to)
	if err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("выборка записей недели: %w", err)
	}
	// Проверка минимума — до любого внешнего вызова, чтобы не жечь запросы.
	if len(entries) < s.minEntries {
		return domain.WeeklyReport{}, fmt.Errorf("%w: есть %d, нужно %d", domain.ErrInsufficientData, len(entries), s.minEntries)
	}

	start := time.Now()
	snapshot, chart := week.Aggregate(weekRange, entries)
	fingerprint := Fingerprint(entries)

	var narrative domain.NarrativeContent
	cached := false
	if !force {
		narrative, cached = s.cachedNarrative(weekRange, fingerprint)
	}
	if !cached {
		req := domain.NarrativeRequest{
			Entries:   entries,
			Snapshot:  snapshot,
			Chart:     chart,
			WeekRange: weekRange,
		}
		// Контекст для генератора: прежний отчёт этой недели, а при его
		// отсутствии отчёт прошлой недели, чтобы эксперименты не повторялись.
		if prior, err := s.reports.Get(ctx, weekKey); err == nil {
			content := prior.Content
			req.PriorReport = &content
		} else if prevKey, err := week.PrevKey(weekKey, s.loc); err == nil {
			if prev, err := s.reports.Get(ctx, prevKey); err == nil {
				content := prev.Content
				req.PriorReport = &content
			}
		}
		narrative, err = s.narrative.GenerateReport(ctx, req)
		if err != nil {
			metrics.IncReportFailure()
			return domain.WeeklyReport{}, fmt.Errorf("текст отчёта: %w", err)
		}
		s.storeNarrative(weekRange, fingerprint, narrative)
	}

	recommendation := domain.Recommendation{}
	if narrative.Recommendation != nil {
		recommendation = *narrative.Recommendation
	} else if s.recommend != nil {
		recommendation = s.recommend.Match(entries, snapshot.DominantMood)
	}

	// Отчёт собирается целиком до сохранения: сбой генерации никогда не
	// оставляет в хранилище частично перезаписанный отчёт.
	rep := domain.WeeklyReport{
		ID:          fmt.Sprintf("report_%s_%d", weekKey, time.Now().UnixMilli()),
		WeekKey:     weekKey,
		WeekRange:   weekRange,
		GeneratedAt: time.Now(),
		Content: domain.ReportContent{
			Snapshot:       snapshot,
			ChartData:      chart,
			Observation:    narrative.Observation,
			Experiment:     narrative.Experiment,
			Recommendation: recommendation,
		},
	}
	if err := s.reports.Save(ctx, rep); err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("сохранение отчёта: %w", err)
	}
	metrics.ObserveReportBuild(time.Since(start))

	s.fireAndForgetReminder(domain.ReminderKindReportReady, "Недельный отчёт готов", 0, weekKey)
	return rep, nil
}

// Get возвращает сохранённый отчёт недели.
func (s *Service) Get(ctx context.Context, weekKey string) (domain.WeeklyReport, error) {
	return s.reports.Get(ctx, weekKey)
}

// MarkViewed отмечает первый просмотр отчёта. Повторные вызовы ничего
// не меняют: хранилище выставляет viewedAt только если он пуст.
func (s *Service) MarkViewed(ctx context.Context, weekKey string) error {
	return s.reports.MarkViewed(ctx, weekKey, time.Now())
}

// AcceptExperiment фиксирует принятие эксперимента и ставит напоминание
// на день эксперимента. Сбой планировщика не откатывает принятие.
func (s *Service) AcceptExperiment(ctx context.Context, weekKey string) error {
	rep, err := s.reports.Get(ctx, weekKey)
	if err != nil {
		return err
	}
	if err := s.reports.SetExperimentAccepted(ctx, weekKey); err != nil {
		return fmt.Errorf("отметка принятия эксперимента: %w", err)
	}
	// По умолчанию день эксперимента — ближайшая среда.
	offset := (int(time.Wednesday) - int(time.Now().In(s.loc).Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	s.fireAndForgetReminder(domain.ReminderKindExperiment, rep.Content.Experiment.Title, offset, weekKey)
	return nil
}

// GetStatus возвращает состояние отчёта для недели, содержащей дату:
// существует ли он и допустима ли генерация прямо сейчас.
func (s *Service) GetStatus(ctx context.Context, date time.Time) (Status, error) {
	weekKey := week.KeyForDate(date.In(s.loc))
	weekRange, err := week.ParseKey(weekKey, s.loc)
	if err != nil {
		return Status{}, err
	}
	status := Status{WeekKey: weekKey}

	rep, err := s.reports.Get(ctx, weekKey)
	switch {
	case err == nil:
		status.Report = &rep
	case errors.Is(err, domain.ErrReportNotFound):
	default:
		return Status{}, fmt.Errorf("чтение отчёта: %w", err)
	}

	from, to := week.Bounds(weekRange)
	entries, err := s.entries.ListRange(ctx, from, to)
	if err != nil {
		return Status{}, fmt.Errorf("выборка записей недели: %w", err)
	}
	status.EntryCount = len(entries)
	status.CanGenerate = len(entries) >= s.minEntries
	status.IsGenerationTime = time.Now().In(s.loc).After(week.GenerationOpensAt(weekRange))
	return status, nil
}

// GetOrGenerateCurrent возвращает отчёт текущей недели, генерируя его,
// если подошло время (воскресенье после 20:00) и данных достаточно.
// nil без ошибки означает «ещё рано или нечего показывать».
func (s *Service) GetOrGenerateCurrent(ctx context.Context) (*domain.WeeklyReport, error) {
	status, err := s.GetStatus(ctx, time.Now().In(s.loc))
	if err != nil {
		return nil, err
	}
	if status.Report != nil {
		return status.Report, nil
	}
	if !status.IsGenerationTime || !status.CanGenerate {
		return nil, nil
	}
	rep, err := s.Generate(ctx, status.WeekKey)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// Fingerprint — отпечаток набора записей: отсортированные id через запятую.
// Совпадение отпечатков означает, что анализ недели можно переиспользовать.
func Fingerprint(entries []domain.MoodEntry) string {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

type cachedAnalysis struct {
	Fingerprint string                  `json:"fingerprint"`
	Content     domain.NarrativeContent `json:"content"`
	CachedAt    time.Time               `json:"cached_at"`
}

func (s *Service) analysisCacheKey(r domain.WeekRange) string {
	return "report:analysis:" + r.Start.Format("2006-01-02")
}

func (s *Service) cachedNarrative(r domain.WeekRange, fingerprint string) (domain.NarrativeContent, bool) {
	if s.cache == nil {
		return domain.NarrativeContent{}, false
	}
	raw, err := s.cache.Get(s.analysisCacheKey(r))
	if err != nil {
		return domain.NarrativeContent{}, false
	}
	var cached cachedAnalysis
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.log.Warn().Err(err).Msg("report: битый кэш анализа, игнорируем")
		return domain.NarrativeContent{}, false
	}
	if cached.Fingerprint != fingerprint {
		return domain.NarrativeContent{}, false
	}
	return cached.Content, true
}

func (s *Service) storeNarrative(r domain.WeekRange, fingerprint string, content domain.NarrativeContent) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(cachedAnalysis{Fingerprint: fingerprint, Content: content, CachedAt: time.Now()})
	if err != nil {
		return
	}
	if err := s.cache.Set(s.analysisCacheKey(r), raw, analysisCacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("report: не удалось записать кэш анализа")
	}
}

func (s *Service) fireAndForgetReminder(kind, title string, dayOffset int, weekKey string) {
	if s.reminders == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.reminders.ScheduleReminder(ctx, title, dayOffset); err != nil {
			s.log.Warn().Err(err).Str("kind", kind).Str("week", weekKey).Msg("report: напоминание не запланировано")
		}
	}()
}
