package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mood-diary/internal/domain"
	"mood-diary/internal/usecase/week"
)

// Service генерирует свободные текстовые итоги недели. Итог независим от
// недельного отчёта: у него свой жизненный цикл и своё хранилище.
type Service struct {
	entries    domain.EntryRepo
	summaries  domain.SummaryRepo
	narrative  domain.NarrativeProvider
	log        zerolog.Logger
	loc        *time.Location
	minEntries int
}

// NewService создаёт сервис итогов недели.
func NewService(entries domain.EntryRepo, summaries domain.SummaryRepo, narrative domain.NarrativeProvider, log zerolog.Logger, loc *time.Location, minEntries int) *Service {
	if minEntries <= 0 {
		minEntries = 3
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		entries:    entries,
		summaries:  summaries,
		narrative:  narrative,
		log:        log,
		loc:        loc,
		minEntries: minEntries,
	}
}

// Generate строит и сохраняет текстовый итог за неделю.
func (s *Service) Generate(ctx context.Context, weekKey string) (domain.WeeklySummary, error) {
	weekRange, err := week.ParseKey(weekKey, s.loc)
	if err != nil {
		return domain.WeeklySummary{}, err
	}

	from, to := week.Bounds(weekRange)
	entries, err := s.entries.ListRange(ctx, from, to)
	if err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("выборка записей недели: %w", err)
	}
	if len(entries) < s.minEntries {
		return domain.WeeklySummary{}, fmt.Errorf("%w: есть %d, нужно %d", domain.ErrInsufficientData, len(entries), s.minEntries)
	}

	snapshot, chart := week.Aggregate(weekRange, entries)
	text, err := s.narrative.GenerateSummary(ctx, domain.NarrativeRequest{
		Entries:   entries,
		Snapshot:  snapshot,
		Chart:     chart,
		WeekRange: weekRange,
	})
	if err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("текст итога: %w", err)
	}

	sum := domain.WeeklySummary{
		WeekKey:   weekKey,
		Content:   text,
		CreatedAt: time.Now(),
	}
	if err := s.summaries.Save(ctx, sum); err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("сохранение итога: %w", err)
	}
	s.log.Info().Str("week", weekKey).Msg("summary: итог недели сохранён")
	return sum, nil
}

// Get возвращает сохранённый итог недели.
func (s *Service) Get(ctx context.Context, weekKey string) (domain.WeeklySummary, error) {
	return s.summaries.Get(ctx, weekKey)
}
