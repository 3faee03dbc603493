package jtv

import (
	"fmt"
	"time"
)

const (
	// FiletimeEpochOffsetMillis is the Unix time in milliseconds of the
	// FILETIME epoch, 1601-01-01T00:00:00Z.
	FiletimeEpochOffsetMillis int64 = -11644473600000

	// filetimeTicksPerMilli is the number of 100ns FILETIME ticks per millisecond.
	filetimeTicksPerMilli = 10000

	// MaxOffsetSeconds bounds the source time-zone offset in both directions.
	MaxOffsetSeconds = 24 * 60 * 60
)

// ValidateOffset checks that seconds lies in [-MaxOffsetSeconds, MaxOffsetSeconds].
func ValidateOffset(seconds int) error {
	if seconds < -MaxOffsetSeconds || seconds > MaxOffsetSeconds {
		return fmt.Errorf("time zone offset %d s out of range [%d, %d]", seconds, -MaxOffsetSeconds, MaxOffsetSeconds)
	}
	return nil
}

// UnixMillis converts a raw FILETIME value, stored as wall-clock time of a
// zone offsetSeconds east of UTC, to milliseconds since the Unix epoch.
// Sub-millisecond ticks are truncated toward zero.
func UnixMillis(rawTime int64, offsetSeconds int) int64 {
	return rawTime/filetimeTicksPerMilli + FiletimeEpochOffsetMillis - int64(offsetSeconds)*1000
}

// FiletimeToTime is UnixMillis as a UTC time.Time.
func FiletimeToTime(rawTime int64, offsetSeconds int) time.Time {
	return time.UnixMilli(UnixMillis(rawTime, offsetSeconds)).UTC()
}

// LocalOffsetSeconds returns the current UTC offset of time.Local in seconds.
func LocalOffsetSeconds() int {
	_, off := time.Now().Zone()
	return off
}
