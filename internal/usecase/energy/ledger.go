package energy

import (
	"sort"

	"mood-diary/internal/domain"
)

// DailyStartingEnergy — стартовый баланс энергии каждого дня.
const DailyStartingEnergy = 100

// sortChrono возвращает копию записей, отсортированную по времени.
// При равных timestamp порядок определяется ID: так траектория
// детерминирована для любого входного порядка.
func sortChrono(entries []domain.MoodEntry) []domain.MoodEntry {
	sorted := append([]domain.MoodEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// CalculateDailyEnergy считает траекторию остатка энергии за день:
// i-й элемент — баланс сразу после i-й (в хронологическом порядке) записи.
// Баланс не опускается ниже нуля, верхней границы нет.
func CalculateDailyEnergy(entries []domain.MoodEntry) []int {
	sorted := sortChrono(entries)
	balance := DailyStartingEnergy
	levels := make([]int, 0, len(sorted))
	for _, entry := range sorted {
		balance += entry.EffectiveDelta()
		if balance < 0 {
			balance = 0
		}
		levels = append(levels, balance)
	}
	return levels
}

// EnergyAfterEntry возвращает остаток энергии после указанной записи.
// Если запись не найдена среди entries, возвращается итоговый баланс дня —
// это определённый контрактом фолбэк, а не ошибка.
func EnergyAfterEntry(entries []domain.MoodEntry, target domain.MoodEntry) int {
	sorted := sortChrono(entries)
	balance := DailyStartingEnergy
	for _, entry := range sorted {
		balance += entry.EffectiveDelta()
		if balance < 0 {
			balance = 0
		}
		if entry.ID == target.ID {
			return balance
		}
	}
	return balance
}

// TodayFinalEnergy возвращает итоговую энергию дня. Для пустого дня —
// стартовую константу.
func TodayFinalEnergy(entries []domain.MoodEntry) int {
	levels := CalculateDailyEnergy(entries)
	if len(levels) == 0 {
		return DailyStartingEnergy
	}
	return levels[len(levels)-1]
}
