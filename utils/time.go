package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// StorageNow returns the current UTC time at microsecond precision, the finest every driver keeps
func StorageNow() time.Time {
	return UTCNow().Truncate(time.Microsecond)
}

// UTCNowUnix returns the current UTC time as Unix timestamp
func UTCNowUnix() int64 {
	return UTCNow().Unix()
}

// ExportTimestamp formats t for use in generated file names
func ExportTimestamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}
