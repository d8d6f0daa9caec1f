package entry

import (
	"fmt"
	"strconv"
	"strings"

	"mood-diary/internal/domain"
)

// ParseDurationInput разбирает человеческий ввод длительности в минуты.
// Принимаются формы "90", "90m", "2h", "2h30m" и "1.5h".
func ParseDurationInput(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: пустая длительность", domain.ErrValidation)
	}

	// Просто число — минуты.
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: длительность должна быть положительной", domain.ErrValidation)
		}
		return n, nil
	}

	minutes := 0.0
	rest := s
	if idx := strings.Index(rest, "h"); idx >= 0 {
		hours, err := strconv.ParseFloat(rest[:idx], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: непонятная длительность %q", domain.ErrValidation, raw)
		}
		minutes += hours * 60
		rest = rest[idx+1:]
	}
	if rest != "" {
		trimmed := strings.TrimSuffix(rest, "m")
		if trimmed == rest && strings.Contains(s, "h") {
			return 0, fmt.Errorf("%w: непонятная длительность %q", domain.ErrValidation, raw)
		}
		if trimmed != "" {
			mins, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: непонятная длительность %q", domain.ErrValidation, raw)
			}
			minutes += mins
		} else if !strings.Contains(s, "h") {
			return 0, fmt.Errorf("%w: непонятная длительность %q", domain.ErrValidation, raw)
		}
	}

	result := int(minutes + 0.5)
	if result <= 0 {
		return 0, fmt.Errorf("%w: длительность должна быть положительной", domain.ErrValidation)
	}
	return result, nil
}
