package energy

import (
	"math/rand"
	"testing"
	"time"

	"mood-diary/internal/domain"
)

func entryAt(id string, hour int, delta int) domain.MoodEntry {
	d := delta
	return domain.MoodEntry{
		ID:          id,
		Timestamp:   time.Date(2025, 2, 10, hour, 0, 0, 0, time.UTC),
		Mood:        "calm",
		EnergyDelta: &d,
	}
}

func TestCalculateDailyEnergy(t *testing.T) {
	entries := []domain.MoodEntry{
		entryAt("a", 9, -5),
		entryAt("b", 15, 3),
		entryAt("c", 20, -20),
	}
	levels := CalculateDailyEnergy(entries)
	want := []int{95, 98, 78}
	if len(levels) != len(want) {
		t.Fatalf("ожидали %d значений, получили %d", len(want), len(levels))
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Fatalf("позиция %d: ожидали %d, получили %d", i, want[i], levels[i])
		}
	}
}

func TestCalculateDailyEnergyClampsAtZero(t *testing.T) {
	entries := []domain.MoodEntry{entryAt("a", 9, -150)}
	levels := CalculateDailyEnergy(entries)
	if len(levels) != 1 || levels[0] != 0 {
		t.Fatalf("ожидали траекторию [0], получили %v", levels)
	}
}

func TestCalculateDailyEnergyNeverNegative(t *testing.T) {
	entries := []domain.MoodEntry{
		entryAt("a", 8, -90),
		entryAt("b", 10, -90),
		entryAt("c", 12, 7),
		entryAt("d", 14, -10),
	}
	for _, level := range CalculateDailyEnergy(entries) {
		if level < 0 {
			t.Fatalf("баланс ушёл в минус: %d", level)
		}
	}
}

func TestCalculateDailyEnergyOrderIndependent(t *testing.T) {
	entries := []domain.MoodEntry{
		entryAt("a", 9, -5),
		entryAt("b", 11, 2),
		entryAt("c", 11, -7),
		entryAt("d", 18, 4),
	}
	base := CalculateDailyEnergy(entries)

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := append([]domain.MoodEntry(nil), entries...)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := CalculateDailyEnergy(shuffled)
		for j := range base {
			if got[j] != base[j] {
				t.Fatalf("перестановка %d: позиция %d: ожидали %d, получили %d", i, j, base[j], got[j])
			}
		}
	}
}

func TestEnergyAfterEntry(t *testing.T) {
	entries := []domain.MoodEntry{
		entryAt("a", 9, -5),
		entryAt("b", 15, 3),
		entryAt("c", 20, -20),
	}
	if got := EnergyAfterEntry(entries, entries[1]); got != 98 {
		t.Fatalf("ожидали 98, получили %d", got)
	}
	levels := CalculateDailyEnergy(entries)
	for i, entry := range entries {
		if got := EnergyAfterEntry(entries, entry); got != levels[i] {
			t.Fatalf("запись %s: ожидали %d, получили %d", entry.ID, levels[i], got)
		}
	}
}

func TestEnergyAfterEntryMissingTargetFallsBack(t *testing.T) {
	entries := []domain.MoodEntry{
		entryAt("a", 9, -5),
		entryAt("b", 15, 3),
	}
	unknown := entryAt("zzz", 12, 1)
	if got := EnergyAfterEntry(entries, unknown); got != 98 {
		t.Fatalf("ожидали итоговый баланс 98, получили %d", got)
	}
}

func TestTodayFinalEnergyEmptyDay(t *testing.T) {
	if got := TodayFinalEnergy(nil); got != DailyStartingEnergy {
		t.Fatalf("ожидали стартовую энергию %d, получили %d", DailyStartingEnergy, got)
	}
}

func TestMissingDeltaCountsAsZero(t *testing.T) {
	entries := []domain.MoodEntry{
		{ID: "a", Timestamp: time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)},
		entryAt("b", 10, -4),
	}
	levels := CalculateDailyEnergy(entries)
	if levels[0] != 100 || levels[1] != 96 {
		t.Fatalf("ожидали [100 96], получили %v", levels)
	}
}
