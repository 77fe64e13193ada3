package etl

import (
	"time"

	"github.com/raaihank/sparkify-lake/internal/table"
)

// Input globs and output destinations, relative to the storage roots.
const (
	SongDataGlob = "song_data/*/*/*/*.json"
	LogDataGlob  = "log_data/*/*/*.json"

	TracksPath    = "song-data.parquet"
	ArtistsPath   = "data/artists-data.parquet"
	UsersPath     = "users-data.parquet"
	TimePath      = "time-data.parquet"
	SongplaysPath = "songplays-data.parquet"
)

// SongPlayPage is the page value of a song-play event.
const SongPlayPage = "NextSong"

// SongRecord is one catalog document
type SongRecord struct {
	SongID          *string
	Title           *string
	ArtistID        *string
	ArtistName      *string
	ArtistLocation  *string
	ArtistLatitude  *float64
	ArtistLongitude *float64
	Year            *int64
	Duration        *float64
}

// EventRecord is one activity log entry
type EventRecord struct {
	Page      *string
	UserID    *string
	FirstName *string
	LastName  *string
	Gender    *string
	Level     *string
	TS        *int64
	Artist    *string
	Song      *string
	SessionID *int64
	Location  *string
	UserAgent *string

	source string
}

// TrackRow is a row of the tracks table, partitioned by year and artist_id
type TrackRow struct {
	SongID   *string  `parquet:"song_id,optional"`
	Title    *string  `parquet:"title,optional"`
	ArtistID *string  `parquet:"-"`
	Year     *int64   `parquet:"-"`
	Duration *float64 `parquet:"duration,optional"`
}

// ArtistRow is a row of the artists table
type ArtistRow struct {
	ArtistID  *string  `parquet:"artist_id,optional"`
	Name      *string  `parquet:"name,optional"`
	Location  *string  `parquet:"location,optional"`
	Latitude  *float64 `parquet:"latitude,optional"`
	Longitude *float64 `parquet:"longitude,optional"`
}

// UserRow is a row of the users table
type UserRow struct {
	UserID    *string `parquet:"user_id,optional"`
	FirstName *string `parquet:"first_name,optional"`
	LastName  *string `parquet:"last_name,optional"`
	Gender    *string `parquet:"gender,optional"`
	Level     *string `parquet:"level,optional"`
}

// TimeRow is one derived time dimension row. It is stored as a
// TimeDateRow or a TimeTimestampRow depending on the start_time precision.
type TimeRow struct {
	StartTime time.Time
	Hour      int32
	Day       int32
	Week      int32
	Month     int32
	Year      int32
	Weekday   int32
}

// TimeDateRow is a row of the time table with start_time as a DATE,
// partitioned by year and month
type TimeDateRow struct {
	StartTime int32 `parquet:"start_time,date"` // days since the epoch
	Hour      int32 `parquet:"hour"`
	Day       int32 `parquet:"day"`
	Week      int32 `parquet:"week"`
	Month     int32 `parquet:"-"`
	Year      int32 `parquet:"-"`
	Weekday   int32 `parquet:"weekday"`
}

// TimeTimestampRow is a row of the time table with start_time as a
// millisecond TIMESTAMP
type TimeTimestampRow struct {
	StartTime int64 `parquet:"start_time,timestamp(millisecond)"`
	Hour      int32 `parquet:"hour"`
	Day       int32 `parquet:"day"`
	Week      int32 `parquet:"week"`
	Month     int32 `parquet:"-"`
	Year      int32 `parquet:"-"`
	Weekday   int32 `parquet:"weekday"`
}

// DateRow returns the stored form of r for PrecisionDate.
func (r TimeRow) DateRow() TimeDateRow {
	return TimeDateRow{
		StartTime: EpochDays(r.StartTime),
		Hour:      r.Hour,
		Day:       r.Day,
		Week:      r.Week,
		Month:     r.Month,
		Year:      r.Year,
		Weekday:   r.Weekday,
	}
}

// TimestampRow returns the stored form of r for PrecisionTimestamp.
func (r TimeRow) TimestampRow() TimeTimestampRow {
	return TimeTimestampRow{
		StartTime: r.StartTime.UnixMilli(),
		Hour:      r.Hour,
		Day:       r.Day,
		Week:      r.Week,
		Month:     r.Month,
		Year:      r.Year,
		Weekday:   r.Weekday,
	}
}

// SongplayRow is one joined song play. Like TimeRow it has a date and a
// timestamp stored form.
type SongplayRow struct {
	Year      int32
	Month     int32
	StartTime time.Time
	UserID    string
	Level     *string
	SongID    *string
	ArtistID  *string
	SessionID *int64
	Location  *string
	UserAgent *string
}

// SongplayDateRow is a row of the songplays fact table with start_time as
// a DATE, partitioned by year and month
type SongplayDateRow struct {
	Year      int32   `parquet:"-"`
	Month     int32   `parquet:"-"`
	StartTime int32   `parquet:"start_time,date"`
	UserID    string  `parquet:"user_id"`
	Level     *string `parquet:"level,optional"`
	SongID    *string `parquet:"song_id,optional"`
	ArtistID  *string `parquet:"artist_id,optional"`
	SessionID *int64  `parquet:"session_id,optional"`
	Location  *string `parquet:"location,optional"`
	UserAgent *string `parquet:"user_agent,optional"`
}

// SongplayTimestampRow is a row of the songplays fact table with
// start_time as a millisecond TIMESTAMP
type SongplayTimestampRow struct {
	Year      int32   `parquet:"-"`
	Month     int32   `parquet:"-"`
	StartTime int64   `parquet:"start_time,timestamp(millisecond)"`
	UserID    string  `parquet:"user_id"`
	Level     *string `parquet:"level,optional"`
	SongID    *string `parquet:"song_id,optional"`
	ArtistID  *string `parquet:"artist_id,optional"`
	SessionID *int64  `parquet:"session_id,optional"`
	Location  *string `parquet:"location,optional"`
	UserAgent *string `parquet:"user_agent,optional"`
}

// DateRow returns the stored form of r for PrecisionDate.
func (r SongplayRow) DateRow() SongplayDateRow {
	return SongplayDateRow{
		Year:      r.Year,
		Month:     r.Month,
		StartTime: EpochDays(r.StartTime),
		UserID:    r.UserID,
		Level:     r.Level,
		SongID:    r.SongID,
		ArtistID:  r.ArtistID,
		SessionID: r.SessionID,
		Location:  r.Location,
		UserAgent: r.UserAgent,
	}
}

// TimestampRow returns the stored form of r for PrecisionTimestamp.
func (r SongplayRow) TimestampRow() SongplayTimestampRow {
	return SongplayTimestampRow{
		Year:      r.Year,
		Month:     r.Month,
		StartTime: r.StartTime.UnixMilli(),
		UserID:    r.UserID,
		Level:     r.Level,
		SongID:    r.SongID,
		ArtistID:  r.ArtistID,
		SessionID: r.SessionID,
		Location:  r.Location,
		UserAgent: r.UserAgent,
	}
}

// Precision controls how much of the event timestamp survives into
// start_time.
type Precision string

const (
	// PrecisionDate truncates start_time to the UTC day, so hour is always 0.
	PrecisionDate Precision = "date"
	// PrecisionTimestamp keeps millisecond precision.
	PrecisionTimestamp Precision = "timestamp"
)

// Config contains ETL pipeline configuration
type Config struct {
	StartTimePrecision Precision `yaml:"start_time_precision" mapstructure:"start_time_precision"` // date
	Compression        string    `yaml:"compression" mapstructure:"compression"`                   // snappy
	MaxRowsPerFile     int       `yaml:"max_rows_per_file" mapstructure:"max_rows_per_file"`       // 0
}

// StageResult represents the result of one pipeline stage
type StageResult struct {
	Stage       string          `json:"stage"`
	RecordsRead int64           `json:"records_read"`
	Tables      []*table.Result `json:"tables"`
	Duration    time.Duration   `json:"duration"`
}

// ProcessingResult represents the result of a full run
type ProcessingResult struct {
	RunID    string         `json:"run_id"`
	Stages   []*StageResult `json:"stages"`
	Duration time.Duration  `json:"duration"`
}
