package entry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mood-diary/internal/domain"
	"mood-diary/internal/usecase/energy"
)

// Service управляет записями дневника настроения.
type Service struct {
	entries domain.EntryRepo
	log     zerolog.Logger
	loc     *time.Location
}

// NewService создаёт сервис записей.
func NewService(entries domain.EntryRepo, log zerolog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{entries: entries, log: log, loc: loc}
}

// CreateInput описывает новую или обновляемую запись. DurationInput —
// человеческий ввод вида "90", "2h30m" или "1.5h".
type CreateInput struct {
	ID            string
	Timestamp     time.Time
	Mood          string
	Content       string
	Tags          []string
	EnergyDelta   *int
	EndTimestamp  *time.Time
	DurationInput string
	IsActive      bool
}

// Upsert сохраняет запись, заполняя оформление из пресета настроения.
func (s *Service) Upsert(ctx context.Context, in CreateInput) (domain.MoodEntry, error) {
	mood := strings.TrimSpace(in.Mood)
	if mood == "" {
		return domain.MoodEntry{}, fmt.Errorf("%w: настроение обязательно", domain.ErrValidation)
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().In(s.loc)
	}
	if in.EndTimestamp != nil && !in.EndTimestamp.After(in.Timestamp) {
		return domain.MoodEntry{}, fmt.Errorf("%w: конец сессии раньше её начала", domain.ErrValidation)
	}
	if in.EnergyDelta != nil && (*in.EnergyDelta < -100 || *in.EnergyDelta > 100) {
		return domain.MoodEntry{}, fmt.Errorf("%w: дельта энергии вне диапазона", domain.ErrValidation)
	}

	e := domain.MoodEntry{
		ID:           in.ID,
		Timestamp:    in.Timestamp,
		Mood:         mood,
		ScoreVersion: domain.ScoreVersionV2,
		Content:      in.Content,
		Tags:         in.Tags,
		EnergyDelta:  in.EnergyDelta,
		EndTimestamp: in.EndTimestamp,
		IsActive:     in.IsActive,
	}
	if preset, ok := domain.FindMoodPreset(mood); ok {
		e.MoodScore = float64(preset.Score)
		e.MoodEmoji = preset.Emoji
		e.MoodColor = preset.Color
		if e.EnergyDelta == nil {
			score := preset.Score
			e.EnergyDelta = &score
		}
	}
	// Конец сессии и ручная длительность взаимоисключающие.
	if in.DurationInput != "" && in.EndTimestamp == nil {
		minutes, err := ParseDurationInput(in.DurationInput)
		if err != nil {
			return domain.MoodEntry{}, err
		}
		e.Duration = &minutes
	}
	if e.EndTimestamp != nil {
		e.IsActive = false
	}

	saved, err := s.entries.Upsert(ctx, e)
	if err != nil {
		return domain.MoodEntry{}, fmt.Errorf("сохранение записи: %w", err)
	}
	s.log.Debug().Str("id", saved.ID).Str("mood", saved.Mood).Msg("entry: запись сохранена")
	return saved, nil
}

// Get возвращает запись по id.
func (s *Service) Get(ctx context.Context, id string) (domain.MoodEntry, error) {
	return s.entries.GetByID(ctx, id)
}

// Delete удаляет запись.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.entries.Delete(ctx, id)
}

// ListRange возвращает записи интервала [from, to).
func (s *Service) ListRange(ctx context.Context, from, to time.Time) ([]domain.MoodEntry, error) {
	return s.entries.ListRange(ctx, from, to)
}

// EndSession закрывает активную сессию настроения.
func (s *Service) EndSession(ctx context.Context, id string, at time.Time) (domain.MoodEntry, error) {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return domain.MoodEntry{}, err
	}
	if at.IsZero() {
		at = time.Now().In(s.loc)
	}
	if !at.After(e.Timestamp) {
		return domain.MoodEntry{}, fmt.Errorf("%w: конец сессии раньше её начала", domain.ErrValidation)
	}
	e.SetEnd(at)
	saved, err := s.entries.Upsert(ctx, e)
	if err != nil {
		return domain.MoodEntry{}, fmt.Errorf("сохранение записи: %w", err)
	}
	return saved, nil
}

// DayEnergy — траектория энергии одного дня.
type DayEnergy struct {
	Date       string             `json:"date"`
	Entries    []domain.MoodEntry `json:"entries"`
	Trajectory []int              `json:"trajectory"`
	Final      int                `json:"final"`
}

// TodayEnergy возвращает траекторию энергии за день, содержащий date.
func (s *Service) TodayEnergy(ctx context.Context, date time.Time) (DayEnergy, error) {
	day := date.In(s.loc)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)

	entries, err := s.entries.ListRange(ctx, from, to)
	if err != nil {
		return DayEnergy{}, fmt.Errorf("выборка записей дня: %w", err)
	}
	return DayEnergy{
		Date:       from.Format("2006-01-02"),
		Entries:    entries,
		Trajectory: energy.CalculateDailyEnergy(entries),
		Final:      energy.TodayFinalEnergy(entries),
	}, nil
}
