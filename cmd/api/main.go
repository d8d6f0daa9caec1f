package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
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
	httpinfra "mood-diary/internal/infra/http"
	"mood-diary/internal/infra/log"
	"mood-diary/internal/infra/metrics"
	openaiinfra "mood-diary/internal/infra/openai"
	"mood-diary/internal/infra/queue"
	entryusecase "mood-diary/internal/usecase/entry"
	"mood-diary/internal/usecase/migrate"
	reportusecase "mood-diary/internal/usecase/report"
	summaryusecase "mood-diary/internal/usecase/summary"
)

// storage объединяет фасады репозиториев: Postgres и SQLite отдают
// одинаковый набор.
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
		logger.Warn().Err(err).Str("tz", cfg.TZ).Msg("api: часовой пояс не найден, используем локальный")
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
			logger.Fatal().Err(err).Msg("api: нет подключения к rabbitmq")
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
		logger.Warn().Msg("api: ключ OpenAI не задан, тексты отчётов собираются из шаблонов")
		provider = narrative.NewSimple()
	}

	migrator := migrate.NewMigrator(store.Entries(), logger)
	if n, err := migrator.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api: миграция оценок не прошла")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("api: записи мигрированы на знаковую шкалу")
	}

	entrySvc := entryusecase.NewService(store.Entries(), logger, loc)
	reportSvc := reportusecase.NewService(store.Entries(), store.Reports(), provider, recommend.NewBooks(),
		scheduler, analysisCache, logger, loc, cfg.Report.MinEntries)
	summarySvc := summaryusecase.NewService(store.Entries(), store.Summaries(), provider, logger, loc, cfg.Report.MinEntries)

	h := &handlers{entries: entrySvc, reports: reportSvc, summaries: summarySvc, loc: loc, log: logger}

	server := httpinfra.NewServer(logger)
	server.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(httpinfra.BearerAuthMiddleware(cfg.APIToken))

		r.Post("/entries", h.upsertEntry)
		r.Get("/entries", h.listEntries)
		r.Get("/entries/{id}", h.getEntry)
		r.Put("/entries/{id}", h.upsertEntry)
		r.Delete("/entries/{id}", h.deleteEntry)
		r.Post("/entries/{id}/end", h.endEntry)
		r.Get("/energy/today", h.todayEnergy)

		r.Get("/reports/status", h.reportStatus)
		r.Get("/reports/{week}", h.getReport)
		r.Post("/reports/{week}/generate", h.generateReport)
		r.Post("/reports/{week}/regenerate", h.regenerateReport)
		r.Post("/reports/{week}/viewed", h.markReportViewed)
		r.Post("/reports/{week}/accept-experiment", h.acceptExperiment)

		r.Get("/summaries/{week}", h.getSummary)
		r.Post("/summaries/{week}", h.generateSummary)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(listenAddr(cfg.Port))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: сервер остановился с ошибкой")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: graceful shutdown не удался")
		}
	}
}

func openStorage(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (storage, func()) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к БД")
		}
		pg := repo.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("api: схема БД не создана")
		}
		return pg, pool.Close
	case "sqlite":
		store, err := repo.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет доступа к файлу БД")
		}
		return store, func() { _ = store.Close() }
	default:
		logger.Fatal().Str("driver", cfg.Storage.Driver).Msg("api: неизвестный драйвер хранилища")
		return nil, nil
	}
}

func listenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

type handlers struct {
	entries   *entryusecase.Service
	reports   *reportusecase.Service
	summaries *summaryusecase.Service
	loc       *time.Location
	log       zerolog.Logger
}

type entryRequest struct {
	Timestamp     time.Time  `json:"timestamp"`
	Mood          string     `json:"mood"`
	Content       string     `json:"content"`
	Tags          []string   `json:"tags"`
	EnergyDelta   *int       `json:"energy_delta"`
	EndTimestamp  *time.Time `json:"end_timestamp"`
	DurationInput string     `json:"duration"`
	IsActive      bool       `json:"is_active"`
}

func (h *handlers) upsertEntry(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	saved, err := h.entries.Upsert(r.Context(), entryusecase.CreateInput{
		ID:            chi.URLParam(r, "id"),
		Timestamp:     req.Timestamp,
		Mood:          req.Mood,
		Content:       req.Content,
		Tags:          req.Tags,
		EnergyDelta:   req.EnergyDelta,
		EndTimestamp:  req.EndTimestamp,
		DurationInput: req.DurationInput,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, saved)
}

func (h *handlers) getEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.entries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, e)
}

func (h *handlers) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.entries.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "некорректный параметр from")
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "некорректный параметр to")
		return
	}
	if from.IsZero() || to.IsZero() {
		httpinfra.WriteError(w, http.StatusBadRequest, "параметры from и to обязательны")
		return
	}
	entries, err := h.entries.ListRange(r.Context(), from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.MoodEntry{}
	}
	httpinfra.WriteJSON(w, http.StatusOK, entries)
}

type endRequest struct {
	At time.Time `json:"at"`
}

func (h *handlers) endEntry(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	// Пустое тело означает «закрыть сейчас».
	var req endRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	e, err := h.entries.EndSession(r.Context(), chi.URLParam(r, "id"), req.At)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, e)
}

func (h *handlers) todayEnergy(w http.ResponseWriter, r *http.Request) {
	day, err := h.entries.TodayEnergy(r.Context(), time.Now().In(h.loc))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, day)
}

func (h *handlers) reportStatus(w http.ResponseWriter, r *http.Request) {
	date := time.Now().In(h.loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "некорректный параметр date")
			return
		}
		date = parsed
	}
	status, err := h.reports.GetStatus(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, status)
}

func (h *handlers) getReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Get(r.Context(), chi.URLParam(r, "week"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, rep)
}

func (h *handlers) generateReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Generate(r.Context(), chi.URLParam(r, "week"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, rep)
}

func (h *handlers) regenerateReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Regenerate(r.Context(), chi.URLParam(r, "week"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, rep)
}

func (h *handlers) markReportViewed(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.MarkViewed(r.Context(), chi.URLParam(r, "week")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) acceptExperiment(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.AcceptExperiment(r.Context(), chi.URLParam(r, "week")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.summaries.Get(r.Context(), chi.URLParam(r, "week"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sum)
}

func (h *handlers) generateSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.summaries.Generate(r.Context(), chi.URLParam(r, "week"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sum)
}

func (h *handlers) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrReportNotFound),
		errors.Is(err, domain.ErrSummaryNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientData):
		httpinfra.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNarrativeGeneration):
		httpinfra.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Msg("api: внутренняя ошибка")
		httpinfra.WriteError(w, http.StatusInternalServerError, "внутренняя ошибка")
	}
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
