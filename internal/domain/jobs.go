package domain

import "time"

// Виды напоминаний.
const (
	ReminderKindReportReady = "report_ready"
	ReminderKindExperiment  = "experiment"
)

// ReminderJob — задание на доставку напоминания пользователю.
type ReminderJob struct {
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Body    string    `json:"body,omitempty"`
	FireAt  time.Time `json:"fire_at"`
	WeekKey string    `json:"week_key,omitempty"`
}
