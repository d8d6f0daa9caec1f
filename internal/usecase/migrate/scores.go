package migrate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mood-diary/internal/domain"
)

// Цвета настроений, которые считаем положительными при пересчёте шкалы.
var positiveColors = map[string]bool{
	"emerald": true,
	"green":   true,
	"teal":    true,
	"cyan":    true,
	"sky":     true,
}

// Migrator переводит записи со старой шкалой оценок 1-10 на знаковую
// шкалу -10..+10. Запускается при старте приложения, повторный прогон
// ничего не меняет: мигрированные записи помечаются версией и больше
// не попадают в выборку.
type Migrator struct {
	entries domain.EntryRepo
	log     zerolog.Logger
}

// NewMigrator создаёт мигратор оценок.
func NewMigrator(entries domain.EntryRepo, log zerolog.Logger) *Migrator {
	return &Migrator{entries: entries, log: log}
}

// Run мигрирует все легаси-записи. Возвращает число обработанных записей.
func (m *Migrator) Run(ctx context.Context) (int, error) {
	legacy, err := m.entries.ListLegacy(ctx)
	if err != nil {
		return 0, fmt.Errorf("выборка легаси-записей: %w", err)
	}
	if len(legacy) == 0 {
		return 0, nil
	}

	migrated := 0
	for _, entry := range legacy {
		delta := entry.EffectiveDelta()
		if entry.EnergyDelta == nil {
			delta = ConvertScore(entry.MoodScore, entry.MoodColor)
		}
		if err := m.entries.UpdateEnergyDelta(ctx, entry.ID, delta, domain.ScoreVersionV2); err != nil {
			return migrated, fmt.Errorf("миграция записи %s: %w", entry.ID, err)
		}
		migrated++
	}
	m.log.Info().Int("count", migrated).Msg("migrate: оценки переведены на знаковую шкалу")
	return migrated, nil
}

// ConvertScore переводит оценку старой шкалы 1-10 в дельту энергии
// -10..+10. Старая шкала не различала знак, поэтому середина шкалы
// разрешается по полярности цвета настроения.
func ConvertScore(score float64, color string) int {
	var delta int
	switch {
	case score >= 9:
		delta = 9
	case score >= 7:
		delta = 6
	case score >= 5:
		if positiveColors[color] {
			delta = 1
		} else {
			delta = -2
		}
	case score >= 3:
		delta = -5
	default:
		delta = -8
	}
	if delta > 10 {
		delta = 10
	}
	if delta < -10 {
		delta = -10
	}
	return delta
}
