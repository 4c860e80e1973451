package models

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wire format for every timestamp the engine writes.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 timestamp and returns it in UTC. Values
// without an offset are taken as UTC. An empty string yields the zero time.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
