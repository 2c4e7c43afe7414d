package utils

import "time"

// Entity timestamps are stored as epoch seconds; responses render RFC3339 UTC.

func NowUnixSeconds() int64 { return time.Now().Unix() }

// FromUnixSeconds returns zero time for t<=0 to let callers decide how to
// render missing values.
func FromUnixSeconds(t int64) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return time.Unix(t, 0).UTC()
}

func FormatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func FormatRFC3339Ptr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatRFC3339(*t)
}
