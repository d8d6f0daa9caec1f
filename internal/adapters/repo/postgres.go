package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mood-diary/internal/domain"
	"mood-diary/internal/infra/metrics"
)

// Postgres реализует репозитории дневника на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Фасады над общим пулом: доменные интерфейсы хранилищ пересекаются
// по именам методов, поэтому один тип все три реализовать не может.

type pgEntries struct{ *Postgres }

type pgReports struct{ *Postgres }

type pgSummaries struct{ *Postgres }

var (
	_ domain.EntryRepo   = pgEntries{}
	_ domain.ReportRepo  = pgReports{}
	_ domain.SummaryRepo = pgSummaries{}
)

// Entries возвращает репозиторий записей дневника.
func (p *Postgres) Entries() domain.EntryRepo { return pgEntries{p} }

// Reports возвращает репозиторий недельных отчётов.
func (p *Postgres) Reports() domain.ReportRepo { return pgReports{p} }

// Summaries возвращает репозиторий итогов недели.
func (p *Postgres) Summaries() domain.SummaryRepo { return pgSummaries{p} }

func (r pgReports) Save(ctx context.Context, report domain.WeeklyReport) error {
	return r.SaveReport(ctx, report)
}

func (r pgReports) Get(ctx context.Context, weekKey string) (domain.WeeklyReport, error) {
	return r.GetReport(ctx, weekKey)
}

func (r pgReports) Delete(ctx context.Context, weekKey string) error {
	return r.DeleteReport(ctx, weekKey)
}

func (s pgSummaries) Save(ctx context.Context, summary domain.WeeklySummary) error {
	return s.SaveSummary(ctx, summary)
}

func (s pgSummaries) Get(ctx context.Context, weekKey string) (domain.WeeklySummary, error) {
	return s.GetSummary(ctx, weekKey)
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицы дневника, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mood_entries (
    id             TEXT PRIMARY KEY,
    ts             TIMESTAMPTZ NOT NULL,
    mood           TEXT NOT NULL,
    mood_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
    score_version  TEXT NOT NULL DEFAULT 'v2',
    mood_emoji     TEXT NOT NULL DEFAULT '',
    mood_color     TEXT NOT NULL DEFAULT '',
    content        TEXT NOT NULL DEFAULT '',
    tags           JSONB NOT NULL DEFAULT '[]',
    energy_delta   INTEGER,
    end_ts         TIMESTAMPTZ,
    duration_min   INTEGER,
    is_active      BOOLEAN NOT NULL DEFAULT FALSE,
    ai_reply       TEXT NOT NULL DEFAULT '',
    ai_suggestions JSONB NOT NULL DEFAULT '[]',
    resolved_at    TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS mood_entries_ts_idx ON mood_entries (ts);

CREATE TABLE IF NOT EXISTS weekly_reports (
    week_key             TEXT PRIMARY KEY,
    id                   TEXT NOT NULL,
    week_start           TIMESTAMPTZ NOT NULL,
    week_end             TIMESTAMPTZ NOT NULL,
    generated_at         TIMESTAMPTZ NOT NULL,
    content              JSONB NOT NULL,
    viewed_at            TIMESTAMPTZ,
    experiment_accepted  BOOLEAN NOT NULL DEFAULT FALSE,
    experiment_completed BOOLEAN NOT NULL DEFAULT FALSE,
    dismissed            BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS weekly_summaries (
    week_key   TEXT PRIMARY KEY,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "mood_entries", start, err)
	if err != nil {
		return fmt.Errorf("создание схемы: %w", err)
	}
	return nil
}

// Upsert реализует domain.EntryRepo.
func (p *Postgres) Upsert(ctx context.Context, entry domain.MoodEntry) (domain.MoodEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.ScoreVersion == "" {
		entry.ScoreVersion = domain.ScoreVersionV2
	}

	tags, err := json.Marshal(emptyIfNil(entry.Tags))
	if err != nil {
		return domain.MoodEntry{}, fmt.Errorf("сериализация тегов: %w", err)
	}
	suggestions, err := json.Marshal(emptyIfNil(entry.AISuggestions))
	if err != nil {
		return domain.MoodEntry{}, fmt.Errorf("сериализация подсказок: %w", err)
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO mood_entries (id, ts, mood, mood_score, score_version, mood_emoji, mood_color, content, tags,
                          energy_delta, end_ts, duration_min, is_active, ai_reply, ai_suggestions, resolved_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO UPDATE SET
    ts = EXCLUDED.ts,
    mood = EXCLUDED.mood,
    mood_score = EXCLUDED.mood_score,
    score_version = EXCLUDED.score_version,
    mood_emoji = EXCLUDED.mood_emoji,
    mood_color = EXCLUDED.mood_color,
    content = EXCLUDED.content,
    tags = EXCLUDED.tags,
    energy_delta = EXCLUDED.energy_delta,
    end_ts = EXCLUDED.end_ts,
    duration_min = EXCLUDED.duration_min,
    is_active = EXCLUDED.is_active,
    ai_reply = EXCLUDED.ai_reply,
    ai_suggestions = EXCLUDED.ai_suggestions,
    resolved_at = EXCLUDED.resolved_at
`, entry.ID, entry.Timestamp, entry.Mood, entry.MoodScore, entry.ScoreVersion, entry.MoodEmoji, entry.MoodColor,
		entry.Content, tags, entry.EnergyDelta, entry.EndTimestamp, entry.Duration, entry.IsActive,
		entry.AIReply, suggestions, entry.ResolvedAt, entry.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "entry_upsert", "mood_entries", start, err)
	if err != nil {
		return domain.MoodEntry{}, fmt.Errorf("сохранение записи: %w", err)
	}
	return entry, nil
}

const entryColumns = `id, ts, mood, mood_score, score_version, mood_emoji, mood_color, content, tags,
       energy_delta, end_ts, duration_min, is_active, ai_reply, ai_suggestions, resolved_at, created_at`

// GetByID реализует domain.EntryRepo.
func (p *Postgres) GetByID(ctx context.Context, id string) (domain.MoodEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM mood_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	metrics.ObserveNetworkRequest("postgres", "entry_get", "mood_entries", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MoodEntry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.MoodEntry{}, fmt.Errorf("чтение записи: %w", err)
	}
	return entry, nil
}

// ListRange реализует domain.EntryRepo: записи в [from, to), по времени.
func (p *Postgres) ListRange(ctx context.Context, from, to time.Time) ([]domain.MoodEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+entryColumns+`
FROM mood_entries
WHERE ts >= $1 AND ts < $2
ORDER BY ts, id
`, from, to)
	metrics.ObserveNetworkRequest("postgres", "entry_list_range", "mood_entries", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка записей: %w", err)
	}
	defer rows.Close()

	var entries []domain.MoodEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение записи: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete реализует domain.EntryRepo.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM mood_entries WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "entry_delete", "mood_entries", start, err)
	if err != nil {
		return fmt.Errorf("удаление записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// ListLegacy возвращает записи, ещё не переведённые на знаковую шкалу.
func (p *Postgres) ListLegacy(ctx context.Context) ([]domain.MoodEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+entryColumns+`
FROM mood_entries
WHERE score_version IS DISTINCT FROM $1
ORDER BY ts, id
`, domain.ScoreVersionV2)
	metrics.ObserveNetworkRequest("postgres", "entry_list_legacy", "mood_entries", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка легаси-записей: %w", err)
	}
	defer rows.Close()

	var entries []domain.MoodEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение записи: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateEnergyDelta реализует domain.EntryRepo.
func (p *Postgres) UpdateEnergyDelta(ctx context.Context, id string, delta int, version string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE mood_entries SET energy_delta = $2, score_version = $3 WHERE id = $1
`, id, delta, version)
	metrics.ObserveNetworkRequest("postgres", "entry_update_delta", "mood_entries", start, err)
	if err != nil {
		return fmt.Errorf("обновление дельты: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// SaveReport перезаписывает отчёт недели целиком, сбрасывая отметки
// жизненного цикла.
func (p *Postgres) SaveReport(ctx context.Context, report domain.WeeklyReport) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	content, err := json.Marshal(report.Content)
	if err != nil {
		return fmt.Errorf("сериализация отчёта: %w", err)
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO weekly_reports (week_key, id, week_start, week_end, generated_at, content,
                            viewed_at, experiment_accepted, experiment_completed, dismissed)
VALUES ($1, $2, $3, $4, $5, $6, NULL, FALSE, FALSE, FALSE)
ON CONFLICT (week_key) DO UPDATE SET
    id = EXCLUDED.id,
    week_start = EXCLUDED.week_start,
    week_end = EXCLUDED.week_end,
    generated_at = EXCLUDED.generated_at,
    content = EXCLUDED.content,
    viewed_at = NULL,
    experiment_accepted = FALSE,
    experiment_completed = FALSE,
    dismissed = FALSE
`, report.WeekKey, report.ID, report.WeekRange.Start, report.WeekRange.End, report.GeneratedAt, content)
	metrics.ObserveNetworkRequest("postgres", "report_save", "weekly_reports", start, err)
	if err != nil {
		return fmt.Errorf("сохранение отчёта: %w", err)
	}
	return nil
}

// GetReport возвращает отчёт недели.
func (p *Postgres) GetReport(ctx context.Context, weekKey string) (domain.WeeklyReport, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		report  domain.WeeklyReport
		content []byte
		viewed  sql.NullTime
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT week_key, id, week_start, week_end, generated_at, content,
       viewed_at, experiment_accepted, experiment_completed, dismissed
FROM weekly_reports WHERE week_key = $1
`, weekKey).Scan(&report.WeekKey, &report.ID, &report.WeekRange.Start, &report.WeekRange.End,
		&report.GeneratedAt, &content, &viewed,
		&report.Tracking.ExperimentAccepted, &report.Tracking.ExperimentCompleted, &report.Tracking.Dismissed)
	metrics.ObserveNetworkRequest("postgres", "report_get", "weekly_reports", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WeeklyReport{}, domain.ErrReportNotFound
	}
	if err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("чтение отчёта: %w", err)
	}
	if viewed.Valid {
		at := viewed.Time
		report.Tracking.ViewedAt = &at
	}
	if err := json.Unmarshal(content, &report.Content); err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("распаковка отчёта: %w", err)
	}
	return report, nil
}

// MarkViewed выставляет время первого просмотра, повторные вызовы
// его не сдвигают.
func (p *Postgres) MarkViewed(ctx context.Context, weekKey string, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE weekly_reports SET viewed_at = COALESCE(viewed_at, $2) WHERE week_key = $1
`, weekKey, at)
	metrics.ObserveNetworkRequest("postgres", "report_mark_viewed", "weekly_reports", start, err)
	if err != nil {
		return fmt.Errorf("отметка просмотра: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

// SetExperimentAccepted реализует domain.ReportRepo.
func (p *Postgres) SetExperimentAccepted(ctx context.Context, weekKey string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE weekly_reports SET experiment_accepted = TRUE WHERE week_key = $1
`, weekKey)
	metrics.ObserveNetworkRequest("postgres", "report_accept_experiment", "weekly_reports", start, err)
	if err != nil {
		return fmt.Errorf("отметка эксперимента: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

// DeleteReport удаляет отчёт недели.
func (p *Postgres) DeleteReport(ctx context.Context, weekKey string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM weekly_reports WHERE week_key = $1`, weekKey)
	metrics.ObserveNetworkRequest("postgres", "report_delete", "weekly_reports", start, err)
	if err != nil {
		return fmt.Errorf("удаление отчёта: %w", err)
	}
	return nil
}

// SaveSummary реализует domain.SummaryRepo.
func (p *Postgres) SaveSummary(ctx context.Context, summary domain.WeeklySummary) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO weekly_summaries (week_key, content, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (week_key) DO UPDATE SET content = EXCLUDED.content, created_at = EXCLUDED.created_at
`, summary.WeekKey, summary.Content, summary.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "summary_save", "weekly_summaries", start, err)
	if err != nil {
		return fmt.Errorf("сохранение итога: %w", err)
	}
	return nil
}

// GetSummary реализует domain.SummaryRepo.
func (p *Postgres) GetSummary(ctx context.Context, weekKey string) (domain.WeeklySummary, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var summary domain.WeeklySummary
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT week_key, content, created_at FROM weekly_summaries WHERE week_key = $1
`, weekKey).Scan(&summary.WeekKey, &summary.Content, &summary.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "summary_get", "weekly_summaries", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WeeklySummary{}, domain.ErrSummaryNotFound
	}
	if err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("чтение итога: %w", err)
	}
	return summary, nil
}

func scanEntry(row pgx.Row) (domain.MoodEntry, error) {
	var (
		entry       domain.MoodEntry
		tags        []byte
		suggestions []byte
		delta       sql.NullInt64
		endTS       sql.NullTime
		duration    sql.NullInt64
		resolvedAt  sql.NullTime
	)
	err := row.Scan(&entry.ID, &entry.Timestamp, &entry.Mood, &entry.MoodScore, &entry.ScoreVersion,
		&entry.MoodEmoji, &entry.MoodColor, &entry.Content, &tags,
		&delta, &endTS, &duration, &entry.IsActive, &entry.AIReply, &suggestions, &resolvedAt, &entry.CreatedAt)
	if err != nil {
		return domain.MoodEntry{}, err
	}
	if err := json.Unmarshal(tags, &entry.Tags); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("распаковка тегов: %w", err)
	}
	if err := json.Unmarshal(suggestions, &entry.AISuggestions); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("распаковка подсказок: %w", err)
	}
	if delta.Valid {
		v := int(delta.Int64)
		entry.EnergyDelta = &v
	}
	if endTS.Valid {
		t := endTS.Time
		entry.EndTimestamp = &t
	}
	if duration.Valid {
		v := int(duration.Int64)
		entry.Duration = &v
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		entry.ResolvedAt = &t
	}
	return entry, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
