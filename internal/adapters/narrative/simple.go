package narrative

import (
	"context"
	"fmt"
	"hash/fnv"

	"mood-diary/internal/domain"
)

// Simple реализует генератор текстов отчёта детерминированными шаблонами.
// Используется без ключа OpenAI и в тестах: одна и та же неделя всегда
// даёт один и тот же текст.
type Simple struct{}

// NewSimple создаёт шаблонный генератор.
func NewSimple() *Simple {
	return &Simple{}
}

var observationTemplates = []struct {
	headline string
	body     string
}{
	{
		headline: "Неделя с перевесом «%s»",
		body:     "Чаще всего на этой неделе встречалось настроение «%s». Средняя дельта энергии %.1f: посмотри, какие занятия её забирали, а какие возвращали.",
	},
	{
		headline: "Контраст между %s и %s",
		body:     "Лучший день недели — %s (%d), самый тяжёлый — %s (%d). Разница заметная: стоит вспомнить, чем эти дни отличались.",
	},
	{
		headline: "Тренд энергии: %s",
		body:     "К концу недели энергия шла по тренду «%s». Доминирующее настроение — «%s», всего записей %d.",
	},
}

var experimentTemplates = []domain.Experiment{
	{
		Title:           "Вечерняя пауза без экрана",
		Instruction:     "Три вечера на этой неделе отложи телефон за час до сна и запиши настроение перед сном.",
		Duration:        "3 вечера",
		ExpectedOutcome: "Стабильнее энергия по утрам.",
	},
	{
		Title:           "Пятнадцать минут прогулки после обеда",
		Instruction:     "Каждый рабочий день выходи на короткую прогулку после обеда и отмечай дельту энергии до и после.",
		Duration:        "5 дней",
		ExpectedOutcome: "Меньше послеобеденного спада.",
	},
	{
		Title:           "Одно дело за раз",
		Instruction:     "Выбери один день и не переключайся между задачами: одно дело до конца, потом следующее. Вечером сравни ощущение усталости с обычным днём.",
		Duration:        "1 день",
		ExpectedOutcome: "Меньше фоновой усталости.",
	},
}

// GenerateReport строит текстовые блоки из шаблонов по данным недели.
func (s *Simple) GenerateReport(_ context.Context, req domain.NarrativeRequest) (domain.NarrativeContent, error) {
	seed := weekSeed(req.WeekRange)
	snap := req.Snapshot

	tpl := observationTemplates[seed%uint32(len(observationTemplates))]
	var obs domain.Observation
	switch seed % uint32(len(observationTemplates)) {
	case 0:
		obs = domain.Observation{
			Headline: fmt.Sprintf(tpl.headline, snap.DominantMood),
			Body:     fmt.Sprintf(tpl.body, snap.DominantMood, snap.AvgEnergyDelta),
		}
	case 1:
		obs = domain.Observation{
			Headline: fmt.Sprintf(tpl.headline, snap.PeakDay, snap.ValleyDay),
			Body:     fmt.Sprintf(tpl.body, snap.PeakDay, snap.PeakEnergy, snap.ValleyDay, snap.ValleyEnergy),
		}
	default:
		obs = domain.Observation{
			Headline: fmt.Sprintf(tpl.headline, trendLabel(snap.EnergyTrend)),
			Body:     fmt.Sprintf(tpl.body, trendLabel(snap.EnergyTrend), snap.DominantMood, snap.TotalEntries),
		}
	}

	experiment := experimentTemplates[(seed/uint32(len(observationTemplates)))%uint32(len(experimentTemplates))]
	return domain.NarrativeContent{Observation: obs, Experiment: experiment}, nil
}

// GenerateSummary строит краткий итог недели из шаблона.
func (s *Simple) GenerateSummary(_ context.Context, req domain.NarrativeRequest) (string, error) {
	snap := req.Snapshot
	return fmt.Sprintf(
		"За неделю ты сделал %d записей, чаще всего отмечая «%s». Средняя дельта энергии %.1f, тренд к концу недели — %s. Лучший день — %s, самый тяжёлый — %s.",
		snap.TotalEntries, snap.DominantMood, snap.AvgEnergyDelta, trendLabel(snap.EnergyTrend), snap.PeakDay, snap.ValleyDay,
	), nil
}

func weekSeed(r domain.WeekRange) uint32 {
	h := fnv.New32a()
	h.Write([]byte(r.Start.Format("2006-01-02")))
	return h.Sum32()
}

func trendLabel(trend string) string {
	switch trend {
	case domain.TrendUp:
		return "вверх"
	case domain.TrendDown:
		return "вниз"
	default:
		return "ровно"
	}
}
