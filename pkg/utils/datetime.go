package utils

import (
	"fmt"
	"strings"
	"time"
)

// APIDateTimeLayout - формат дат в ответах API: YYYY-MM-DDTHH:MM:SSZ (всегда UTC).
const APIDateTimeLayout = "2006-01-02T15:04:05Z"

const dateLayout = "2006-01-02"

// Принимаемые варианты ISO-8601. Строки без смещения считаются UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05",
}

// ParseISO8601 разбирает дату-время и приводит ее к UTC с точностью до микросекунд.
func ParseISO8601(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, fmt.Errorf("пустое значение даты")
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeTime(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("неверный формат даты %q", value)
}

// NormalizeTime приводит время к точности, которую хранит PostgreSQL.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func FormatAPITime(t time.Time) string {
	return t.UTC().Format(APIDateTimeLayout)
}

// ParseDateBound разбирает границу диапазона из query-параметра.
// Дата без времени для верхней границы означает конец этих суток.
func ParseDateBound(value string, upper bool) (time.Time, error) {
	s := strings.TrimSpace(value)
	if d, err := time.Parse(dateLayout, s); err == nil {
		if upper {
			return d.Add(24*time.Hour - time.Microsecond), nil
		}
		return d, nil
	}
	return ParseISO8601(s)
}
