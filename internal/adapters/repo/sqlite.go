package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mood-diary/internal/domain"
	"mood-diary/internal/infra/metrics"
)

// SQLite реализует репозитории дневника на встраиваемой БД. Вариант для
// локального запуска без Postgres: один файл, нулевая настройка.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite открывает файл БД, создавая каталог и схему при необходимости.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("каталог БД: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("открытие БД: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close закрывает соединение с БД.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS mood_entries (
    id             TEXT PRIMARY KEY,
    ts             TEXT NOT NULL,
    mood           TEXT NOT NULL,
    mood_score     REAL NOT NULL DEFAULT 0,
    score_version  TEXT NOT NULL DEFAULT 'v2',
    mood_emoji     TEXT NOT NULL DEFAULT '',
    mood_color     TEXT NOT NULL DEFAULT '',
    content        TEXT NOT NULL DEFAULT '',
    tags           TEXT NOT NULL DEFAULT '[]',
    energy_delta   INTEGER,
    end_ts         TEXT,
    duration_min   INTEGER,
    is_active      INTEGER NOT NULL DEFAULT 0,
    ai_reply       TEXT NOT NULL DEFAULT '',
    ai_suggestions TEXT NOT NULL DEFAULT '[]',
    resolved_at    TEXT,
    created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS mood_entries_ts_idx ON mood_entries (ts);

CREATE TABLE IF NOT EXISTS weekly_reports (
    week_key             TEXT PRIMARY KEY,
    id                   TEXT NOT NULL,
    week_start           TEXT NOT NULL,
    week_end             TEXT NOT NULL,
    generated_at         TEXT NOT NULL,
    content              TEXT NOT NULL,
    viewed_at            TEXT,
    experiment_accepted  INTEGER NOT NULL DEFAULT 0,
    experiment_completed INTEGER NOT NULL DEFAULT 0,
    dismissed            INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS weekly_summaries (
    week_key   TEXT PRIMARY KEY,
    content    TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("создание схемы: %w", err)
	}
	return nil
}

type liteEntries struct{ *SQLite }

type liteReports struct{ *SQLite }

type liteSummaries struct{ *SQLite }

var (
	_ domain.EntryRepo   = liteEntries{}
	_ domain.ReportRepo  = liteReports{}
	_ domain.SummaryRepo = liteSummaries{}
)

// Entries возвращает репозиторий записей дневника.
func (s *SQLite) Entries() domain.EntryRepo { return liteEntries{s} }

// Reports возвращает репозиторий недельных отчётов.
func (s *SQLite) Reports() domain.ReportRepo { return liteReports{s} }

// Summaries возвращает репозиторий итогов недели.
func (s *SQLite) Summaries() domain.SummaryRepo { return liteSummaries{s} }

// Время храним текстом фиксированной ширины: у sqlite нет собственного
// типа времени, а лексикографический порядок такого текста совпадает с
// хронологическим. RFC3339Nano здесь не годится: он отбрасывает нулевые
// доли секунды, и "00:00:00.5Z" сортируется раньше "00:00:00Z".
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, raw)
	if err != nil {
		// Строки переменной ширины, записанные до фиксированного формата.
		return time.Parse(time.RFC3339Nano, raw)
	}
	return t, nil
}

func parseTimePtr(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Upsert реализует domain.EntryRepo.
func (s *SQLite) Upsert(ctx context.Context, entry domain.MoodEntry) (domain.MoodEntry, error) {
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
	_, err = s.db.ExecContext(ctx, `
INSERT INTO mood_entries (id, ts, mood, mood_score, score_version, mood_emoji, mood_color, content, tags,
                          energy_delta, end_ts, duration_min, is_active, ai_reply, ai_suggestions, resolved_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    ts = excluded.ts,
    mood = excluded.mood,
    mood_score = excluded.mood_score,
    score_version = excluded.score_version,
    mood_emoji = excluded.mood_emoji,
    mood_color = excluded.mood_color,
    content = excluded.content,
    tags = excluded.tags,
    energy_delta = excluded.energy_delta,
    end_ts = excluded.end_ts,
    duration_min = excluded.duration_min,
    is_active = excluded.is_active,
    ai_reply = excluded.ai_reply,
    ai_suggestions = excluded.ai_suggestions,
    resolved_at = excluded.resolved_at
`, entry.ID, formatTime(entry.Timestamp), entry.Mood, entry.MoodScore, entry.ScoreVersion,
		entry.MoodEmoji, entry.MoodColor, entry.Content, string(tags),
		entry.EnergyDelta, formatTimePtr(entry.EndTimestamp), entry.Duration, entry.IsActive,
		entry.AIReply, string(suggestions), formatTimePtr(entry.ResolvedAt), formatTime(entry.CreatedAt))
	metrics.ObserveNetworkRequest("sqlite", "entry_upsert", "mood_entries", start, err)
	if err != nil {
		return domain.MoodEntry{}, fmt.Errorf("сохранение записи: %w", err)
	}
	return entry, nil
}

// GetByID реализует domain.EntryRepo.
func (s *SQLite) GetByID(ctx context.Context, id string) (domain.MoodEntry, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM mood_entries WHERE id = ?`, id)
	entry, err := scanLiteEntry(row)
	metrics.ObserveNetworkRequest("sqlite", "entry_get", "mood_entries", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MoodEntry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.MoodEntry{}, fmt.Errorf("чтение записи: %w", err)
	}
	return entry, nil
}

// ListRange реализует domain.EntryRepo: записи в [from, to), по времени.
func (s *SQLite) ListRange(ctx context.Context, from, to time.Time) ([]domain.MoodEntry, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
SELECT `+entryColumns+`
FROM mood_entries
WHERE ts >= ? AND ts < ?
ORDER BY ts, id
`, formatTime(from), formatTime(to))
	metrics.ObserveNetworkRequest("sqlite", "entry_list_range", "mood_entries", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка записей: %w", err)
	}
	defer rows.Close()

	var entries []domain.MoodEntry
	for rows.Next() {
		entry, err := scanLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение записи: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete реализует domain.EntryRepo.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM mood_entries WHERE id = ?`, id)
	metrics.ObserveNetworkRequest("sqlite", "entry_delete", "mood_entries", start, err)
	if err != nil {
		return fmt.Errorf("удаление записи: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// ListLegacy возвращает записи, ещё не переведённые на знаковую шкалу.
func (s *SQLite) ListLegacy(ctx context.Context) ([]domain.MoodEntry, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
SELECT `+entryColumns+`
FROM mood_entries
WHERE score_version <> ?
ORDER BY ts, id
`, domain.ScoreVersionV2)
	metrics.ObserveNetworkRequest("sqlite", "entry_list_legacy", "mood_entries", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка легаси-записей: %w", err)
	}
	defer rows.Close()

	var entries []domain.MoodEntry
	for rows.Next() {
		entry, err := scanLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение записи: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateEnergyDelta реализует domain.EntryRepo.
func (s *SQLite) UpdateEnergyDelta(ctx context.Context, id string, delta int, version string) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
UPDATE mood_entries SET energy_delta = ?, score_version = ? WHERE id = ?
`, delta, version, id)
	metrics.ObserveNetworkRequest("sqlite", "entry_update_delta", "mood_entries", start, err)
	if err != nil {
		return fmt.Errorf("обновление дельты: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// SaveReport перезаписывает отчёт недели целиком, сбрасывая отметки
// жизненного цикла.
func (s *SQLite) SaveReport(ctx context.Context, report domain.WeeklyReport) error {
	content, err := json.Marshal(report.Content)
	if err != nil {
		return fmt.Errorf("сериализация отчёта: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO weekly_reports (week_key, id, week_start, week_end, generated_at, content,
                            viewed_at, experiment_accepted, experiment_completed, dismissed)
VALUES (?, ?, ?, ?, ?, ?, NULL, 0, 0, 0)
ON CONFLICT (week_key) DO UPDATE SET
    id = excluded.id,
    week_start = excluded.week_start,
    week_end = excluded.week_end,
    generated_at = excluded.generated_at,
    content = excluded.content,
    viewed_at = NULL,
    experiment_accepted = 0,
    experiment_completed = 0,
    dismissed = 0
`, report.WeekKey, report.ID, formatTime(report.WeekRange.Start), formatTime(report.WeekRange.End),
		formatTime(report.GeneratedAt), string(content))
	metrics.ObserveNetworkRequest("sqlite", "report_save", "weekly_reports", start, err)
	if err != nil {
		return fmt.Errorf("сохранение отчёта: %w", err)
	}
	return nil
}

// GetReport возвращает отчёт недели.
func (s *SQLite) GetReport(ctx context.Context, weekKey string) (domain.WeeklyReport, error) {
	var (
		report      domain.WeeklyReport
		weekStart   string
		weekEnd     string
		generatedAt string
		content     string
		viewed      sql.NullString
	)
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
SELECT week_key, id, week_start, week_end, generated_at, content,
       viewed_at, experiment_accepted, experiment_completed, dismissed
FROM weekly_reports WHERE week_key = ?
`, weekKey).Scan(&report.WeekKey, &report.ID, &weekStart, &weekEnd, &generatedAt, &content,
		&viewed, &report.Tracking.ExperimentAccepted, &report.Tracking.ExperimentCompleted, &report.Tracking.Dismissed)
	metrics.ObserveNetworkRequest("sqlite", "report_get", "weekly_reports", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WeeklyReport{}, domain.ErrReportNotFound
	}
	if err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("чтение отчёта: %w", err)
	}
	if report.WeekRange.Start, err = parseTime(weekStart); err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("разбор времени: %w", err)
	}
	if report.WeekRange.End, err = parseTime(weekEnd); err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("разбор времени: %w", err)
	}
	if report.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("разбор времени: %w", err)
	}
	if report.Tracking.ViewedAt, err = parseTimePtr(viewed); err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("разбор времени: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &report.Content); err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("распаковка отчёта: %w", err)
	}
	return report, nil
}

// MarkViewed выставляет время первого просмотра, повторные вызовы
// его не сдвигают.
func (s *SQLite) MarkViewed(ctx context.Context, weekKey string, at time.Time) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
UPDATE weekly_reports SET viewed_at = COALESCE(viewed_at, ?) WHERE week_key = ?
`, formatTime(at), weekKey)
	metrics.ObserveNetworkRequest("sqlite", "report_mark_viewed", "weekly_reports", start, err)
	if err != nil {
		return fmt.Errorf("отметка просмотра: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

// SetExperimentAccepted реализует domain.ReportRepo.
func (s *SQLite) SetExperimentAccepted(ctx context.Context, weekKey string) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `
UPDATE weekly_reports SET experiment_accepted = 1 WHERE week_key = ?
`, weekKey)
	metrics.ObserveNetworkRequest("sqlite", "report_accept_experiment", "weekly_reports", start, err)
	if err != nil {
		return fmt.Errorf("отметка эксперимента: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

// DeleteReport удаляет отчёт недели.
func (s *SQLite) DeleteReport(ctx context.Context, weekKey string) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `DELETE FROM weekly_reports WHERE week_key = ?`, weekKey)
	metrics.ObserveNetworkRequest("sqlite", "report_delete", "weekly_reports", start, err)
	if err != nil {
		return fmt.Errorf("удаление отчёта: %w", err)
	}
	return nil
}

// SaveSummary реализует domain.SummaryRepo.
func (s *SQLite) SaveSummary(ctx context.Context, summary domain.WeeklySummary) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO weekly_summaries (week_key, content, created_at)
VALUES (?, ?, ?)
ON CONFLICT (week_key) DO UPDATE SET content = excluded.content, created_at = excluded.created_at
`, summary.WeekKey, summary.Content, formatTime(summary.CreatedAt))
	metrics.ObserveNetworkRequest("sqlite", "summary_save", "weekly_summaries", start, err)
	if err != nil {
		return fmt.Errorf("сохранение итога: %w", err)
	}
	return nil
}

// GetSummary реализует domain.SummaryRepo.
func (s *SQLite) GetSummary(ctx context.Context, weekKey string) (domain.WeeklySummary, error) {
	var (
		summary   domain.WeeklySummary
		createdAt string
	)
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
SELECT week_key, content, created_at FROM weekly_summaries WHERE week_key = ?
`, weekKey).Scan(&summary.WeekKey, &summary.Content, &createdAt)
	metrics.ObserveNetworkRequest("sqlite", "summary_get", "weekly_summaries", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WeeklySummary{}, domain.ErrSummaryNotFound
	}
	if err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("чтение итога: %w", err)
	}
	if summary.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("разбор времени: %w", err)
	}
	return summary, nil
}

func (r liteReports) Save(ctx context.Context, report domain.WeeklyReport) error {
	return r.SaveReport(ctx, report)
}

func (r liteReports) Get(ctx context.Context, weekKey string) (domain.WeeklyReport, error) {
	return r.GetReport(ctx, weekKey)
}

func (r liteReports) Delete(ctx context.Context, weekKey string) error {
	return r.DeleteReport(ctx, weekKey)
}

func (s liteSummaries) Save(ctx context.Context, summary domain.WeeklySummary) error {
	return s.SaveSummary(ctx, summary)
}

func (s liteSummaries) Get(ctx context.Context, weekKey string) (domain.WeeklySummary, error) {
	return s.GetSummary(ctx, weekKey)
}

type liteRow interface {
	Scan(dest ...any) error
}

func scanLiteEntry(row liteRow) (domain.MoodEntry, error) {
	var (
		entry       domain.MoodEntry
		ts          string
		createdAt   string
		tags        string
		suggestions string
		delta       sql.NullInt64
		endTS       sql.NullString
		duration    sql.NullInt64
		resolvedAt  sql.NullString
	)
	err := row.Scan(&entry.ID, &ts, &entry.Mood, &entry.MoodScore, &entry.ScoreVersion,
		&entry.MoodEmoji, &entry.MoodColor, &entry.Content, &tags,
		&delta, &endTS, &duration, &entry.IsActive, &entry.AIReply, &suggestions, &resolvedAt, &createdAt)
	if err != nil {
		return domain.MoodEntry{}, err
	}
	if entry.Timestamp, err = parseTime(ts); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("разбор времени: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("разбор времени: %w", err)
	}
	if entry.EndTimestamp, err = parseTimePtr(endTS); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("разбор времени: %w", err)
	}
	if entry.ResolvedAt, err = parseTimePtr(resolvedAt); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("разбор времени: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("распаковка тегов: %w", err)
	}
	if err := json.Unmarshal([]byte(suggestions), &entry.AISuggestions); err != nil {
		return domain.MoodEntry{}, fmt.Errorf("распаковка подсказок: %w", err)
	}
	if delta.Valid {
		v := int(delta.Int64)
		entry.EnergyDelta = &v
	}
	if duration.Valid {
		v := int(duration.Int64)
		entry.Duration = &v
	}
	return entry, nil
}
