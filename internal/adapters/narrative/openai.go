package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mood-diary/internal/domain"
	openai "mood-diary/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует генератор текстовых блоков отчёта через Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI создаёт провайдер текстов отчёта.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

type reportPayload struct {
	Observation struct {
		Headline string `json:"headline"`
		Body     string `json:"body"`
		Pattern  string `json:"pattern"`
	} `json:"observation"`
	Experiment struct {
		Title           string `json:"title"`
		Instruction     string `json:"instruction"`
		Duration        string `json:"duration"`
		ExpectedOutcome string `json:"expected_outcome"`
	} `json:"experiment"`
	Recommendation *struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Author string `json:"author"`
		Why    string `json:"why"`
	} `json:"recommendation"`
}

const reportSystemPrompt = "Ты внимательный наставник по психологическому благополучию. " +
	"Пиши по-русски, тепло и конкретно, без клише и диагнозов. " +
	"Опирайся только на присланные данные и не выдумывай события, которых в них нет."

// GenerateReport строит наблюдение, эксперимент и рекомендацию недели.
// Любой сбой (сеть, пустой ответ, битый JSON) возвращается как
// domain.ErrNarrativeGeneration, чтобы ядро не различало причины.
func (o *OpenAI) GenerateReport(ctx context.Context, req domain.NarrativeRequest) (domain.NarrativeContent, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.6,
		MaxTokens:   1200,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: reportSystemPrompt},
			{Role: openai.RoleUser, Content: buildReportPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	})
	if err != nil {
		return domain.NarrativeContent{}, fmt.Errorf("%w: %v", domain.ErrNarrativeGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return domain.NarrativeContent{}, fmt.Errorf("%w: пустой ответ", domain.ErrNarrativeGeneration)
	}

	var parsed reportPayload
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.NarrativeContent{}, fmt.Errorf("%w: распаковка ответа: %v", domain.ErrNarrativeGeneration, err)
	}
	if parsed.Observation.Headline == "" || parsed.Experiment.Title == "" {
		return domain.NarrativeContent{}, fmt.Errorf("%w: неполный ответ", domain.ErrNarrativeGeneration)
	}

	out := domain.NarrativeContent{
		Observation: domain.Observation{
			Headline: strings.TrimSpace(parsed.Observation.Headline),
			Body:     strings.TrimSpace(parsed.Observation.Body),
			Pattern:  strings.TrimSpace(parsed.Observation.Pattern),
		},
		Experiment: domain.Experiment{
			Title:           strings.TrimSpace(parsed.Experiment.Title),
			Instruction:     strings.TrimSpace(parsed.Experiment.Instruction),
			Duration:        strings.TrimSpace(parsed.Experiment.Duration),
			ExpectedOutcome: strings.TrimSpace(parsed.Experiment.ExpectedOutcome),
		},
	}
	if parsed.Recommendation != nil && parsed.Recommendation.Title != "" {
		out.Recommendation = &domain.Recommendation{
			Type:   strings.TrimSpace(parsed.Recommendation.Type),
			Title:  strings.TrimSpace(parsed.Recommendation.Title),
			Author: strings.TrimSpace(parsed.Recommendation.Author),
			Why:    strings.TrimSpace(parsed.Recommendation.Why),
		}
	}
	return out, nil
}

// GenerateSummary строит свободный текстовый итог недели.
func (o *OpenAI) GenerateSummary(ctx context.Context, req domain.NarrativeRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.7,
		MaxTokens:   500,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: reportSystemPrompt},
			{Role: openai.RoleUser, Content: buildSummaryPrompt(req)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNarrativeGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: пустой ответ", domain.ErrNarrativeGeneration)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: пустой ответ", domain.ErrNarrativeGeneration)
	}
	return text, nil
}

func buildReportPrompt(req domain.NarrativeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Неделя %s — %s.\n\n", req.WeekRange.Start.Format("02.01.2006"), req.WeekRange.End.Format("02.01.2006"))

	fmt.Fprintf(&b, "Статистика недели:\n")
	fmt.Fprintf(&b, "- записей: %d\n", req.Snapshot.TotalEntries)
	fmt.Fprintf(&b, "- суммарная длительность: %d мин\n", req.Snapshot.TotalDurationMinutes)
	fmt.Fprintf(&b, "- средняя дельта энергии: %.1f\n", req.Snapshot.AvgEnergyDelta)
	fmt.Fprintf(&b, "- доминирующее настроение: %s\n", req.Snapshot.DominantMood)
	fmt.Fprintf(&b, "- тренд энергии: %s\n", req.Snapshot.EnergyTrend)
	fmt.Fprintf(&b, "- пик: %s (%d), спад: %s (%d)\n\n", req.Snapshot.PeakDay, req.Snapshot.PeakEnergy, req.Snapshot.ValleyDay, req.Snapshot.ValleyEnergy)

	b.WriteString("Энергия по дням (старт каждого дня 100):\n")
	for _, p := range req.Chart.DailyEnergy {
		if !p.HasData {
			fmt.Fprintf(&b, "- %s: нет записей\n", p.Day)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d\n", p.Day, p.Value)
	}

	b.WriteString("\nЗаписи недели:\n")
	for _, e := range req.Entries {
		fmt.Fprintf(&b, "- %s %s (дельта %+d, %d мин)", e.Timestamp.Format("Mon 15:04"), e.Mood, e.EffectiveDelta(), e.DurationMinutes())
		if text := strings.TrimSpace(e.Content); text != "" {
			fmt.Fprintf(&b, ": %s", clipRunes(text, 200))
		}
		b.WriteString("\n")
	}

	if req.PriorReport != nil {
		fmt.Fprintf(&b, "\nПрошлый отчёт уже предлагал эксперимент «%s» — предложи другой.\n", req.PriorReport.Experiment.Title)
	}

	b.WriteString(`
Верни JSON без пояснений:
{
  "observation": {"headline": "...", "body": "...", "pattern": "..."},
  "experiment": {"title": "...", "instruction": "...", "duration": "...", "expected_outcome": "..."},
  "recommendation": {"type": "book|concept|practice", "title": "...", "author": "...", "why": "..."}
}
Наблюдение — один конкретный паттерн недели. Эксперимент — одно небольшое
действие на следующую неделю. Рекомендацию можно опустить, если данных мало.`)
	return b.String()
}

func buildSummaryPrompt(req domain.NarrativeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Напиши короткий итог недели %s — %s от второго лица, 3-5 предложений, без списков.\n\n",
		req.WeekRange.Start.Format("02.01.2006"), req.WeekRange.End.Format("02.01.2006"))
	fmt.Fprintf(&b, "Записей: %d, средняя дельта энергии %.1f, доминирующее настроение %s, тренд %s.\n",
		req.Snapshot.TotalEntries, req.Snapshot.AvgEnergyDelta, req.Snapshot.DominantMood, req.Snapshot.EnergyTrend)
	for _, e := range req.Entries {
		fmt.Fprintf(&b, "- %s %s (%+d)", e.Timestamp.Format("Mon"), e.Mood, e.EffectiveDelta())
		if text := strings.TrimSpace(e.Content); text != "" {
			fmt.Fprintf(&b, ": %s", clipRunes(text, 120))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
