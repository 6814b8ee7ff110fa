package store

import "time"

// Fixed-width so lexical ORDER BY on created_at matches chronological order.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
