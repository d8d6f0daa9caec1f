package week

import (
	"math"
	"sort"
	"time"

	"mood-diary/internal/domain"
	"mood-diary/internal/usecase/energy"
)

// trendDeadBand — мёртвая зона сравнения половин недели: разница средних
// итоговых энергий меньше трёх пунктов считается шумом, а не трендом.
const trendDeadBand = 3.0

var dayNames = [7]string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}

// Aggregate строит статистику недели по её записям. На вход ожидаются
// записи из полуинтервала Bounds(r); порядок не важен.
func Aggregate(r domain.WeekRange, entries []domain.MoodEntry) (domain.ReportSnapshot, domain.ChartData) {
	sorted := append([]domain.MoodEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	byDay := make([][]domain.MoodEntry, 7)
	chart := domain.ChartData{DailyEnergy: make([]domain.DailyEnergyPoint, 7)}
	for i := 0; i < 7; i++ {
		day := r.Start.AddDate(0, 0, i)
		byDay[i] = EntriesOfDay(sorted, day)
		point := domain.DailyEnergyPoint{Day: dayNames[i], Date: day.Format("2006-01-02")}
		if len(byDay[i]) > 0 {
			point.Value = energy.TodayFinalEnergy(byDay[i])
			point.HasData = true
		}
		chart.DailyEnergy[i] = point
	}

	snapshot := domain.ReportSnapshot{
		TotalEntries: len(sorted),
		EnergyTrend:  domain.TrendFlat,
	}
	if len(sorted) == 0 {
		return snapshot, chart
	}

	deltaSum := 0
	for _, entry := range sorted {
		snapshot.TotalDurationMinutes += entry.DurationMinutes()
		deltaSum += entry.EffectiveDelta()
	}
	snapshot.AvgEnergyDelta = round1(float64(deltaSum) / float64(len(sorted)))

	snapshot.DominantMood = dominantMood(sorted)
	chart.MoodDistribution = moodDistribution(sorted)
	chart.TimeQuality = timeQuality(chart.MoodDistribution)

	peakSet, valleySet := false, false
	for i, point := range chart.DailyEnergy {
		if !point.HasData {
			continue
		}
		if !peakSet || point.Value > snapshot.PeakEnergy {
			snapshot.PeakDay, snapshot.PeakEnergy, peakSet = dayNames[i], point.Value, true
		}
		if !valleySet || point.Value < snapshot.ValleyEnergy {
			snapshot.ValleyDay, snapshot.ValleyEnergy, valleySet = dayNames[i], point.Value, true
		}
	}

	snapshot.EnergyTrend = energyTrend(chart.DailyEnergy)
	chart.TimeQuality.RecoveryEfficiency = recoveryEfficiency(snapshot.EnergyTrend)
	return snapshot, chart
}

// dominantMood выбирает настроение с наибольшим числом записей; при
// равенстве побеждает встреченное раньше по хронологии.
func dominantMood(sorted []domain.MoodEntry) string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, entry := range sorted {
		if _, ok := counts[entry.Mood]; !ok {
			order = append(order, entry.Mood)
		}
		counts[entry.Mood]++
	}
	best := ""
	for _, mood := range order {
		if best == "" || counts[mood] > counts[best] {
			best = mood
		}
	}
	return best
}

// moodDistribution считает суммарные минуты по каждому настроению,
// по убыванию длительности.
func moodDistribution(sorted []domain.MoodEntry) []domain.MoodDuration {
	minutes := make(map[string]int)
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, entry := range sorted {
		if _, ok := counts[entry.Mood]; !ok {
			order = append(order, entry.Mood)
		}
		counts[entry.Mood]++
		minutes[entry.Mood] += entry.DurationMinutes()
	}
	out := make([]domain.MoodDuration, 0, len(order))
	for _, mood := range order {
		out = append(out, domain.MoodDuration{Mood: mood, Minutes: minutes[mood], Count: counts[mood]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Minutes > out[j].Minutes })
	return out
}

// timeQuality делит время недели на часы в подпитывающих и выматывающих
// настроениях по знаку пресетной оценки настроения.
func timeQuality(distribution []domain.MoodDuration) domain.TimeQuality {
	var quality domain.TimeQuality
	for _, md := range distribution {
		preset, ok := domain.FindMoodPreset(md.Mood)
		if !ok {
			continue
		}
		switch {
		case preset.Score > 0:
			quality.HighEnergyHours += float64(md.Minutes)
		case preset.Score < 0:
			quality.LowEnergyHours += float64(md.Minutes)
		}
	}
	quality.HighEnergyHours = round1(quality.HighEnergyHours / 60)
	quality.LowEnergyHours = round1(quality.LowEnergyHours / 60)
	return quality
}

// energyTrend сравнивает средние итоговые энергии первой (пн-ср) и второй
// (пт-вс) половин недели, учитывая только дни с данными.
func energyTrend(series []domain.DailyEnergyPoint) string {
	firstAvg, firstOK := averageEnergy(series[0:3])
	secondAvg, secondOK := averageEnergy(series[4:7])
	if !firstOK || !secondOK {
		return domain.TrendFlat
	}
	switch {
	case secondAvg-firstAvg > trendDeadBand:
		return domain.TrendUp
	case firstAvg-secondAvg > trendDeadBand:
		return domain.TrendDown
	default:
		return domain.TrendFlat
	}
}

func averageEnergy(points []domain.DailyEnergyPoint) (float64, bool) {
	sum, n := 0, 0
	for _, p := range points {
		if !p.HasData {
			continue
		}
		sum += p.Value
		n++
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

func recoveryEfficiency(trend string) int {
	switch trend {
	case domain.TrendUp:
		return 75
	case domain.TrendDown:
		return 45
	default:
		return 60
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// EntriesOfDay выбирает из недели записи одного календарного дня.
func EntriesOfDay(entries []domain.MoodEntry, day time.Time) []domain.MoodEntry {
	date := day.Format("2006-01-02")
	loc := day.Location()
	out := make([]domain.MoodEntry, 0)
	for _, entry := range entries {
		if entry.Timestamp.In(loc).Format("2006-01-02") == date {
			out = append(out, entry)
		}
	}
	return out
}
