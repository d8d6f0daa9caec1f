package week

import (
	"errors"
	"testing"
	"time"

	"mood-diary/internal/domain"
)

func TestKeyForDate(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, 2, 17, 12, 0, 0, 0, time.UTC), "2025-W08"},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-W01"},
		// 30 декабря 2024 принадлежит первой ISO-неделе 2025 года.
		{time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC), "2025-W01"},
		// 1 января 2021 принадлежит 53-й неделе 2020 года.
		{time.Date(2021, 1, 1, 9, 0, 0, 0, time.UTC), "2020-W53"},
	}
	for _, tc := range cases {
		if got := KeyForDate(tc.date); got != tc.want {
			t.Fatalf("%s: ожидали %s, получили %s", tc.date, tc.want, got)
		}
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	keys := []string{"2025-W01", "2025-W08", "2024-W52", "2020-W53"}
	for _, key := range keys {
		r, err := ParseKey(key, time.UTC)
		if err != nil {
			t.Fatalf("%s: не ожидали ошибку: %v", key, err)
		}
		if r.Start.Weekday() != time.Monday {
			t.Fatalf("%s: начало недели не понедельник: %s", key, r.Start.Weekday())
		}
		if got := r.End.Sub(r.Start); got != 6*24*time.Hour {
			t.Fatalf("%s: ожидали 7-дневный диапазон, получили %s", key, got)
		}
		if got := KeyForDate(r.Start); got != key {
			t.Fatalf("начало недели %s дало ключ %s", key, got)
		}
	}
}

func TestParseKeyRejectsInvalid(t *testing.T) {
	for _, key := range []string{"2025-08", "что-то", "2025-W54", "2024-W53"} {
		if _, err := ParseKey(key, time.UTC); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: ожидали ErrValidation, получили %v", key, err)
		}
	}
}

func TestPrevKeyAcrossYearBoundary(t *testing.T) {
	got, err := PrevKey("2021-W01", time.UTC)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// 2020 год содержит 53 ISO-недели.
	if got != "2020-W53" {
		t.Fatalf("ожидали 2020-W53, получили %s", got)
	}

	got, err = PrevKey("2025-W01", time.UTC)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got != "2024-W52" {
		t.Fatalf("ожидали 2024-W52, получили %s", got)
	}
}

func TestBoundsHalfOpen(t *testing.T) {
	r, err := ParseKey("2025-W08", time.UTC)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	from, to := Bounds(r)
	if !from.Equal(r.Start) {
		t.Fatalf("начало интервала не совпадает с понедельником")
	}
	if !to.Equal(r.Start.AddDate(0, 0, 7)) {
		t.Fatalf("конец интервала не следующий понедельник: %s", to)
	}
}

func TestGenerationOpensAt(t *testing.T) {
	r, err := ParseKey("2025-W08", time.UTC)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	opens := GenerationOpensAt(r)
	if opens.Weekday() != time.Sunday || opens.Hour() != 20 {
		t.Fatalf("ожидали воскресенье 20:00, получили %s", opens)
	}
}
