package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mood-diary/internal/adapters/narrative"
	"mood-diary/internal/adapters/recommend"
	"mood-diary/internal/adapters/reminder"
	"mood-diary/internal/adapters/repo"
	"mood-diary/internal/domain"
	"mood-diary/internal/infra/cache"
	"mood-diary/internal/infra/config"
	"mood-diary/internal/infra/db"
	"mood-diary/internal/infra/log"
	"mood-diary/internal/infra/metrics"
	openaiinfra "mood-diary/internal/infra/openai"
	"mood-diary/internal/infra/queue"
	reportusecase "mood-diary/internal/usecase/report"
)

type storage interface {
	Entries() domain.EntryRepo
	Reports() domain.ReportRepo
	Summaries() domain.SummaryRepo
}

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Warn().Err(err).Str("tz", cfg.TZ).Msg("scheduler: часовой пояс не найден, используем локальный")
		loc = time.Local
	}

	store, closeStore := openStorage(ctx, cfg, logger)
	defer closeStore()

	var (
		analysisCache domain.Cache
		reminderQueue domain.ReminderQueue
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		analysisCache = cache.NewRedis(redisClient)
		if cfg.Queues.Driver == "redis" {
			reminderQueue = queue.NewRedisReminderQueue(redisClient, cfg.Queues.Reminder)
		}
	}
	if cfg.Queues.Driver == "rabbitmq" && cfg.Queues.AMQPURL != "" {
		rq, err := queue.NewRabbitReminderQueue(cfg.Queues.AMQPURL, cfg.Queues.Reminder)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: нет подключения к rabbitmq")
		}
		defer rq.Close()
		reminderQueue = rq
	}

	var scheduler domain.ReminderScheduler
	if reminderQueue != nil {
		scheduler = reminder.NewQueueScheduler(reminderQueue, loc)
	}

	var provider domain.NarrativeProvider
	if cfg.OpenAI.APIKey != "" {
		client := openaiinfra.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second)
		provider = narrative.NewOpenAI(client, cfg.OpenAI.Model, time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second)
	} else {
		provider = narrative.NewSimple()
	}

	reportSvc := reportusecase.NewService(store.Entries(), store.Reports(), provider, recommend.NewBooks(),
		scheduler, analysisCache, logger, loc, cfg.Report.MinEntries)

	metrics.StartServer(ctx, logger, listenAddr(cfg.Port))

	// Воркер доставки напоминаний работает только при настроенной
	// очереди и телеграм-боте.
	if reminderQueue != nil && cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: телеграм-бот недоступен")
		}
		sender := reminder.NewTelegramSender(bot, cfg.Telegram.ChatID)
		worker := reminder.NewWorker(reminderQueue, sender, logger)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("scheduler: воркер напоминаний остановился")
			}
		}()
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
			rep, err := reportSvc.GetOrGenerateCurrent(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("scheduler: автогенерация отчёта не удалась")
				continue
			}
			if rep != nil {
				logger.Debug().Str("week", rep.WeekKey).Msg("scheduler: отчёт недели на месте")
			}
		}
	}
}

func openStorage(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (storage, func()) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
		}
		pg := repo.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("scheduler: схема БД не создана")
		}
		return pg, pool.Close
	case "sqlite":
		store, err := repo.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: нет доступа к файлу БД")
		}
		return store, func() { _ = store.Close() }
	default:
		logger.Fatal().Str("driver", cfg.Storage.Driver).Msg("scheduler: неизвестный драйвер хранилища")
		return nil, nil
	}
}

func listenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
