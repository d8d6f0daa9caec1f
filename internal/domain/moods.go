package domain

// MoodPreset описывает встроенную конфигурацию настроения.
type MoodPreset struct {
	Label       string
	Value       string
	Score       int
	Emoji       string
	Color       string
	HexColor    string
	Suggestions []string
}

// MoodPresets — встроенная таблица настроений. Score задан по текущей
// знаковой шкале -10..+10 и служит запасным значением energyDelta.
var MoodPresets = []MoodPreset{
	{Label: "Радость", Value: "happy", Score: 8, Emoji: "😊", Color: "emerald", HexColor: "#10b981", Suggestions: []string{"всё удалось", "приятный сюрприз", "на подъёме"}},
	{Label: "Спокойствие", Value: "calm", Score: 1, Emoji: "😌", Color: "sky", HexColor: "#38bdf8", Suggestions: []string{"расслабленность", "уют", "без тревог"}},
	{Label: "Паника", Value: "panic", Score: -3, Emoji: "😨", Color: "amber", HexColor: "#fbbf24", Suggestions: []string{"напряжение", "беспокойство", "сердце колотится"}},
	{Label: "Залипание", Value: "indulge", Score: -4, Emoji: "🫠", Color: "purple", HexColor: "#c084fc", Suggestions: []string{"не могу остановиться", "прокрастинация", "утонул в ленте"}},
	{Label: "Нет сил", Value: "low_energy", Score: -5, Emoji: "😶", Color: "slate", HexColor: "#94a3b8", Suggestions: []string{"вялость", "пустота", "ничего не хочется"}},
	{Label: "Усталость", Value: "tired", Score: -5, Emoji: "😩", Color: "indigo", HexColor: "#818cf8", Suggestions: []string{"вымотан", "сонливость", "нужен отдых"}},
	{Label: "Руминация", Value: "ruminate", Score: -6, Emoji: "🔄", Color: "teal", HexColor: "#14b8a6", Suggestions: []string{"прокручиваю по кругу", "застрял в мыслях", "накручиваю себя"}},
	{Label: "Тревога", Value: "anxious", Score: -6, Emoji: "😰", Color: "amber", HexColor: "#f59e0b", Suggestions: []string{"стресс", "волнение", "давит дедлайн"}},
	{Label: "Грусть", Value: "sad", Score: -8, Emoji: "😢", Color: "blue", HexColor: "#3b82f6", Suggestions: []string{"подавленность", "обида", "одиноко"}},
	{Label: "Злость", Value: "angry", Score: -10, Emoji: "😠", Color: "rose", HexColor: "#f43f5e", Suggestions: []string{"раздражение", "несправедливость", "вспылил"}},
	{Label: "Самоедство", Value: "mental_drain", Score: -10, Emoji: "🌀", Color: "gray", HexColor: "#4b5563", Suggestions: []string{"самокритика", "внутренний конфликт", "выгорание"}},
}

// FindMoodPreset ищет настроение по ключу или видимой подписи.
func FindMoodPreset(mood string) (MoodPreset, bool) {
	for _, p := range MoodPresets {
		if p.Value == mood || p.Label == mood {
			return p, true
		}
	}
	return MoodPreset{}, false
}
