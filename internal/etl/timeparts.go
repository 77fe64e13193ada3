package etl

import (
	"errors"
	"fmt"
	"time"
)

// ErrNullTimestamp is returned for a song-play event without a ts.
var ErrNullTimestamp = errors.New("song play has no timestamp")

// StartTime converts an epoch-millisecond timestamp to the start_time
// value. With PrecisionDate only the UTC calendar date is kept.
func StartTime(ts int64, precision Precision) time.Time {
	t := time.UnixMilli(ts).UTC()
	if precision == PrecisionTimestamp {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// EpochDays returns the number of whole UTC days between the Unix epoch
// and t, rounding towards the past.
func EpochDays(t time.Time) int32 {
	secs := t.Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		days--
	}
	return int32(days)
}

// NewTimeRow derives the time dimension columns from start.
func NewTimeRow(start time.Time) TimeRow {
	_, week := start.ISOWeek()
	return TimeRow{
		StartTime: start,
		Hour:      int32(start.Hour()),
		Day:       int32(start.Day()),
		Week:      int32(week),
		Month:     int32(start.Month()),
		Year:      int32(start.Year()),
		Weekday:   Weekday(start),
	}
}

// Weekday returns the day of week with Monday as 0 and Sunday as 6.
func Weekday(t time.Time) int32 {
	return int32((int(t.Weekday()) + 6) % 7)
}

func eventStartTime(e EventRecord, precision Precision) (time.Time, error) {
	if e.TS == nil {
		return time.Time{}, fmt.Errorf("%s: %w", e.source, ErrNullTimestamp)
	}
	return StartTime(*e.TS, precision), nil
}
