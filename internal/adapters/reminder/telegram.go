package reminder

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mood-diary/internal/domain"
	"mood-diary/internal/infra/metrics"
)

// TelegramSender доставляет напоминания в личный чат Telegram.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender создаёт отправителя.
func NewTelegramSender(bot *tgbotapi.BotAPI, chatID int64) *TelegramSender {
	return &TelegramSender{bot: bot, chatID: chatID}
}

// Send отправляет напоминание.
func (s *TelegramSender) Send(job domain.ReminderJob) error {
	text := formatReminder(job)
	msg := tgbotapi.NewMessage(s.chatID, text)
	start := time.Now()
	_, err := s.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_message", "reminder", start, err)
	if err != nil {
		metrics.ReminderSendErrors.Inc()
		return fmt.Errorf("отправка напоминания: %w", err)
	}
	return nil
}

func formatReminder(job domain.ReminderJob) string {
	switch job.Kind {
	case domain.ReminderKindExperiment:
		return fmt.Sprintf("Сегодня день эксперимента: %s", job.Title)
	case domain.ReminderKindReportReady:
		return job.Title
	default:
		if job.Body != "" {
			return fmt.Sprintf("%s\n%s", job.Title, job.Body)
		}
		return job.Title
	}
}
