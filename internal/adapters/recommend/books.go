package recommend

import (
	"strings"

	"mood-diary/internal/domain"
)

type book struct {
	title    string
	author   string
	why      string
	keywords []string
	moods    []string
}

// Подборка привязана к темам записей, а не к жанрам: ключевые слова
// сопоставляются с текстом, настроения — с доминирующим за неделю.
var books = []book{
	{
		title:    "Поток",
		author:   "Михай Чиксентмихайи",
		why:      "О состоянии полного включения в дело — противоядие от залипания и руминации.",
		keywords: []string{"залип", "прокрастин", "отвлек", "скролл", "фокус"},
		moods:    []string{"indulge", "ruminate"},
	},
	{
		title:    "В работу с головой",
		author:   "Кэл Ньюпорт",
		why:      "Про глубокую работу без переключений — помогает, когда усталость копится от разорванного дня.",
		keywords: []string{"работ", "встреч", "задач", "дедлайн", "переключ"},
		moods:    []string{"tired", "low_energy"},
	},
	{
		title:    "Сила настоящего",
		author:   "Экхарт Толле",
		why:      "Возвращает внимание из тревожных сценариев будущего в текущий момент.",
		keywords: []string{"тревог", "боюсь", "паник", "будущ", "переживаю"},
		moods:    []string{"anxious", "panic"},
	},
	{
		title:    "Атомные привычки",
		author:   "Джеймс Клир",
		why:      "Маленькие устойчивые изменения вместо рывков — хорошо ложится на недельные эксперименты.",
		keywords: []string{"привычк", "режим", "спорт", "сон", "рутин"},
		moods:    []string{"sad", "mental_drain"},
	},
	{
		title:    "Альманах Наваля Равиканта",
		author:   "Эрик Йоргенсон",
		why:      "Короткие заметки о спокойствии и долгих играх — для недель, когда хочется перспективы.",
		keywords: []string{"смысл", "цель", "деньг", "свобод", "спокой"},
		moods:    []string{"calm", "happy"},
	},
}

// Books подбирает книгу недели по записям. Детерминированный fallback,
// когда LLM не вернул собственную рекомендацию.
type Books struct{}

// NewBooks создаёт подборщик книг.
func NewBooks() *Books {
	return &Books{}
}

// Match возвращает книгу с наибольшим пересечением с неделей: +2 за каждое
// ключевое слово в тексте записей, +1 за совпадение с тегом, +3 за
// доминирующее настроение. При равном счёте побеждает первая в списке.
func (b *Books) Match(entries []domain.MoodEntry, dominantMood string) domain.Recommendation {
	var text strings.Builder
	tags := make(map[string]bool)
	for _, e := range entries {
		text.WriteString(strings.ToLower(e.Content))
		text.WriteString(" ")
		for _, tag := range e.Tags {
			tags[strings.ToLower(tag)] = true
		}
	}
	corpus := text.String()

	best := books[0]
	bestScore := -1
	for _, candidate := range books {
		score := 0
		for _, kw := range candidate.keywords {
			if strings.Contains(corpus, kw) {
				score += 2
			}
			for tag := range tags {
				if strings.Contains(tag, kw) {
					score++
				}
			}
		}
		for _, mood := range candidate.moods {
			if mood == dominantMood {
				score += 3
			}
		}
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	return domain.Recommendation{
		Type:   "book",
		Title:  best.title,
		Author: best.author,
		Why:    best.why,
	}
}
