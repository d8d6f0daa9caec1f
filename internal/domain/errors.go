package domain

import "errors"

// ErrValidation возвращается при некорректном запросе вызывающей стороны.
var ErrValidation = errors.New("некорректный запрос")

// ErrInsufficientData возвращается, когда записей за неделю меньше минимума.
// Это ожидаемое состояние, а не сбой: UI показывает «нужно ещё N записей».
var ErrInsufficientData = errors.New("недостаточно записей за неделю")

// ErrNarrativeGeneration возвращается, если внешний генератор текста упал
// или вернул неразбираемый ответ. Ядро не ретраит, решает вызывающий.
var ErrNarrativeGeneration = errors.New("генерация текста не удалась")

// ErrReportNotFound возвращается операциями над несуществующим отчётом.
var ErrReportNotFound = errors.New("отчёт за эту неделю не найден")

// ErrEntryNotFound возвращается хранилищем записей.
var ErrEntryNotFound = errors.New("запись не найдена")

// ErrSummaryNotFound возвращается хранилищем недельных итогов.
var ErrSummaryNotFound = errors.New("итог недели не найден")
