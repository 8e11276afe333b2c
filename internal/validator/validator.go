package validator

import (
	"time"
)

const (
	// FallbackDeviceID подставляется, когда устройство не прислало device_id.
	FallbackDeviceID = "esp32-unknown"

	DefaultLimit = 50
	MaxLimit     = 1000
)

// ResolveDeviceID возвращает идентификатор устройства или запасное значение.
func ResolveDeviceID(deviceID string) string {
	if deviceID == "" {
		return FallbackDeviceID
	}
	return deviceID
}

// ParseDeviceTimestamp разбирает ISO-8601 метку времени устройства.
// Прошивка шлёт UTC с суффиксом Z; при нечитаемой метке подставляем
// серверное время (now), ok=false сигнализирует о подстановке.
func ParseDeviceTimestamp(value string, now time.Time) (time.Time, bool) {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return now, false
	}
	return ts.UTC(), true
}

// ClampLimit приводит limit из query-параметра к допустимому диапазону:
// отсутствие или мусор дает значение по умолчанию, сверху жёсткий потолок.
func ClampLimit(limit int, hasLimit bool) int {
	if !hasLimit || limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
