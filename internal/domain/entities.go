package domain

import "time"

// ScoreVersionV1 отмечает записи со старой положительной шкалой 1-10.
const ScoreVersionV1 = "v1"

// ScoreVersionV2 отмечает записи с текущей знаковой шкалой -10..+10.
const ScoreVersionV2 = "v2"

// MoodEntry описывает одну запись дневника настроения.
type MoodEntry struct {
	ID            string
	Timestamp     time.Time
	Mood          string
	MoodScore     float64
	ScoreVersion  string
	MoodEmoji     string
	MoodColor     string
	Content       string
	Tags          []string
	EnergyDelta   *int
	EndTimestamp  *time.Time
	Duration      *int
	IsActive      bool
	AIReply       string
	AISuggestions []string
	ResolvedAt    *time.Time
	CreatedAt     time.Time
}

// EffectiveDelta возвращает вклад записи в баланс энергии. Отсутствующее
// значение считается нулевым, это не ошибка.
func (e MoodEntry) EffectiveDelta() int {
	if e.EnergyDelta == nil {
		return 0
	}
	return *e.EnergyDelta
}

// DurationMinutes возвращает фактическую длительность записи в минутах.
// Приоритет: endTimestamp > ручной duration > 0.
func (e MoodEntry) DurationMinutes() int {
	if e.EndTimestamp != nil {
		mins := int((e.EndTimestamp.Sub(e.Timestamp) + 30*time.Second) / time.Minute)
		if mins < 1 {
			mins = 1
		}
		return mins
	}
	if e.Duration != nil {
		return *e.Duration
	}
	return 0
}

// SetEnd фиксирует конец сессии настроения. Ручной duration при этом
// сбрасывается: авторитетным остаётся одно представление времени, не два.
func (e *MoodEntry) SetEnd(at time.Time) {
	end := at
	e.EndTimestamp = &end
	e.Duration = nil
	e.IsActive = false
}

// WeekRange задаёт календарные границы недели: понедельник и воскресенье.
type WeekRange struct {
	Start time.Time
	End   time.Time
}

// ReportSnapshot содержит агрегированную статистику недели.
type ReportSnapshot struct {
	TotalEntries         int
	TotalDurationMinutes int
	AvgEnergyDelta       float64
	DominantMood         string
	EnergyTrend          string
	PeakDay              string
	PeakEnergy           int
	ValleyDay            string
	ValleyEnergy         int
}

// Направления тренда энергии за неделю.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// DailyEnergyPoint — итоговая энергия одного дня недели. День без записей
// остаётся в серии с HasData=false, чтобы график не рвался.
type DailyEnergyPoint struct {
	Day     string
	Date    string
	Value   int
	HasData bool
}

// MoodDuration — суммарная длительность одного настроения за неделю.
type MoodDuration struct {
	Mood    string
	Minutes int
	Count   int
}

// TimeQuality — сводка качества времени недели.
type TimeQuality struct {
	HighEnergyHours    float64
	LowEnergyHours     float64
	RecoveryEfficiency int
}

// ChartData — производные серии для визуализации, детерминированно
// вычисляются из тех же записей, что и снапшот.
type ChartData struct {
	DailyEnergy      []DailyEnergyPoint
	MoodDistribution []MoodDuration
	TimeQuality      TimeQuality
}

// Observation — наблюдение наставника из внешнего генератора текста.
type Observation struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
	Pattern  string `json:"pattern,omitempty"`
}

// Experiment — предложенный недельный эксперимент.
type Experiment struct {
	Title           string `json:"title"`
	Instruction     string `json:"instruction"`
	Duration        string `json:"duration"`
	ExpectedOutcome string `json:"expected_outcome"`
}

// Recommendation — рекомендация недели (книга, концепция и т.п.).
type Recommendation struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	Why    string `json:"why"`
	Link   string `json:"link,omitempty"`
}

// NarrativeContent — текстовые блоки отчёта от внешнего коллаборатора.
// Ядро их только сохраняет и никогда не перевычисляет.
type NarrativeContent struct {
	Observation    Observation     `json:"observation"`
	Experiment     Experiment      `json:"experiment"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// ReportContent — полное содержимое недельного отчёта.
type ReportContent struct {
	Snapshot       ReportSnapshot
	ChartData      ChartData
	Observation    Observation
	Experiment     Experiment
	Recommendation Recommendation
}

// ReportTracking — изменяемая часть отчёта: отметки жизненного цикла.
type ReportTracking struct {
	ViewedAt            *time.Time
	ExperimentAccepted  bool
	ExperimentCompleted bool
	Dismissed           bool
}

// WeeklyReport — недельный отчёт. На один weekKey существует ровно один
// отчёт, перегенерация перезаписывает его целиком.
type WeeklyReport struct {
	ID          string
	WeekKey     string
	WeekRange   WeekRange
	GeneratedAt time.Time
	Content     ReportContent
	Tracking    ReportTracking
}

// WeeklySummary — свободный текстовый итог недели, независимый от отчёта.
type WeeklySummary struct {
	WeekKey   string
	Content   string
	CreatedAt time.Time
}
