package week

import (
	"fmt"
	"time"

	"mood-diary/internal/domain"
)

// Неделя адресуется каноническим ключом ISO-8601 вида "2025-W08".
// Везде используется именно ISO-нумерация: первая неделя года — та,
// что содержит первый четверг.

// KeyForDate возвращает ключ недели, в которую попадает дата.
func KeyForDate(t time.Time) string {
	year, weekNum := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, weekNum)
}

// MondayOf возвращает полночь понедельника недели, содержащей t,
// в локации t.
func MondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, 1-weekday)
}

// ParseKey разбирает ключ недели в календарные границы (понедельник и
// воскресенье) в указанной локации.
func ParseKey(key string, loc *time.Location) (domain.WeekRange, error) {
	var year, weekNum int
	if _, err := fmt.Sscanf(key, "%d-W%02d", &year, &weekNum); err != nil {
		return domain.WeekRange{}, fmt.Errorf("%w: ключ недели %q", domain.ErrValidation, key)
	}
	if weekNum < 1 || weekNum > 53 {
		return domain.WeekRange{}, fmt.Errorf("%w: номер недели %d", domain.ErrValidation, weekNum)
	}
	// Первая ISO-неделя содержит 4 января.
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, loc)
	start := MondayOf(jan4).AddDate(0, 0, (weekNum-1)*7)
	if KeyForDate(start) != key {
		return domain.WeekRange{}, fmt.Errorf("%w: недели %s не существует", domain.ErrValidation, key)
	}
	return domain.WeekRange{Start: start, End: start.AddDate(0, 0, 6)}, nil
}

// PrevKey возвращает ключ предыдущей недели. Переход через границу года
// считается честно, включая годы с 53 неделями.
func PrevKey(key string, loc *time.Location) (string, error) {
	r, err := ParseKey(key, loc)
	if err != nil {
		return "", err
	}
	return KeyForDate(r.Start.AddDate(0, 0, -7)), nil
}

// Bounds возвращает полуинтервал [from, to) недели для выборки записей.
func Bounds(r domain.WeekRange) (time.Time, time.Time) {
	return r.Start, r.Start.AddDate(0, 0, 7)
}

// GenerationOpensAt возвращает момент, после которого неделя готова к
// автогенерации отчёта: воскресенье 20:00 локального времени.
func GenerationOpensAt(r domain.WeekRange) time.Time {
	end := r.End
	return time.Date(end.Year(), end.Month(), end.Day(), 20, 0, 0, 0, end.Location())
}
