package store

import (
	"fmt"
	"time"
)

// DateLayout is the textual form of Messages.date. Sub-second precision is not kept.
const DateLayout = "2006-01-02 15:04:05 -0700"

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse message date %q: %w", s, err)
	}
	return t, nil
}
