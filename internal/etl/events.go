package etl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/sparkify-lake/internal/table"
)

// UsersSpec is unpartitioned.
var UsersSpec = table.Spec[UserRow]{
	Name: "users",
	Path: UsersPath,
}

// TimeDateSpec and TimeTimestampSpec partition the time dimension by year
// and month. They differ only in the start_time column type.
var (
	TimeDateSpec = table.Spec[TimeDateRow]{
		Name:        "time",
		Path:        TimePath,
		PartitionBy: []string{"year", "month"},
		Partition: func(r TimeDateRow) []string {
			return yearMonth(r.Year, r.Month)
		},
	}
	TimeTimestampSpec = table.Spec[TimeTimestampRow]{
		Name:        "time",
		Path:        TimePath,
		PartitionBy: []string{"year", "month"},
		Partition: func(r TimeTimestampRow) []string {
			return yearMonth(r.Year, r.Month)
		},
	}
)

// SongplaysDateSpec and SongplaysTimestampSpec partition the fact table by
// year and month.
var (
	SongplaysDateSpec = table.Spec[SongplayDateRow]{
		Name:        "songplays",
		Path:        SongplaysPath,
		PartitionBy: []string{"year", "month"},
		Partition: func(r SongplayDateRow) []string {
			return yearMonth(r.Year, r.Month)
		},
	}
	SongplaysTimestampSpec = table.Spec[SongplayTimestampRow]{
		Name:        "songplays",
		Path:        SongplaysPath,
		PartitionBy: []string{"year", "month"},
		Partition: func(r SongplayTimestampRow) []string {
			return yearMonth(r.Year, r.Month)
		},
	}
)

func yearMonth(year, month int32) []string {
	return []string{table.IntValue(int(year)), table.IntValue(int(month))}
}

// SongPlays keeps the events whose page is NextSong.
func SongPlays(events []EventRecord) []EventRecord {
	var plays []EventRecord
	for _, e := range events {
		if e.Page != nil && *e.Page == SongPlayPage {
			plays = append(plays, e)
		}
	}
	return plays
}

// UsersTable projects every song-play event onto a user row. Rows are
// neither deduplicated nor filtered on a null user id.
func UsersTable(plays []EventRecord) []UserRow {
	rows := make([]UserRow, len(plays))
	for i, e := range plays {
		rows[i] = UserRow{
			UserID:    e.UserID,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Gender:    e.Gender,
			Level:     e.Level,
		}
	}
	return rows
}

// TimeTable derives one time row per song-play event.
func TimeTable(plays []EventRecord, precision Precision) ([]TimeRow, error) {
	rows := make([]TimeRow, len(plays))
	for i, e := range plays {
		start, err := eventStartTime(e, precision)
		if err != nil {
			return nil, err
		}
		rows[i] = NewTimeRow(start)
	}
	return rows, nil
}

type songKey struct {
	artist string
	title  string
}

// SongplaysTable inner-joins song-play events that have a user id with
// the catalog on artist name and title. Events without a match are
// dropped; an event matching several catalog records yields one row per
// match.
func SongplaysTable(plays []EventRecord, songs []SongRecord, precision Precision) ([]SongplayRow, error) {
	index := make(map[songKey][]int)
	for i, s := range songs {
		if s.ArtistName == nil || s.Title == nil {
			continue
		}
		k := songKey{artist: *s.ArtistName, title: *s.Title}
		index[k] = append(index[k], i)
	}

	var rows []SongplayRow
	for _, e := range plays {
		if e.UserID == nil || e.Artist == nil || e.Song == nil {
			continue
		}
		matches := index[songKey{artist: *e.Artist, title: *e.Song}]
		if len(matches) == 0 {
			continue
		}
		start, err := eventStartTime(e, precision)
		if err != nil {
			return nil, err
		}
		for _, i := range matches {
			rows = append(rows, SongplayRow{
				Year:      int32(start.Year()),
				Month:     int32(start.Month()),
				StartTime: start,
				UserID:    *e.UserID,
				Level:     e.Level,
				SongID:    songs[i].SongID,
				ArtistID:  songs[i].ArtistID,
				SessionID: e.SessionID,
				Location:  e.Location,
				UserAgent: e.UserAgent,
			})
		}
	}
	return rows, nil
}

// ProcessLogData reads the activity log and writes the users, time and
// songplays tables. The catalog is read again for the songplays join.
func (p *Pipeline) ProcessLogData(ctx context.Context) (*StageResult, error) {
	start := time.Now()
	log := p.logger.With(zap.String("stage", "log_data"))
	log.Info("Reading log data", zap.String("glob", LogDataGlob))

	events, err := ReadEvents(ctx, p.session.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read log data: %w", err)
	}
	result := &StageResult{Stage: "log_data", RecordsRead: int64(len(events))}

	plays := SongPlays(events)
	log.Info("Log data read",
		zap.Int("records", len(events)),
		zap.Int("song_plays", len(plays)))

	users, err := writeTable(ctx, p, UsersSpec, UsersTable(plays))
	if err != nil {
		return nil, err
	}
	result.Tables = append(result.Tables, users)

	timeRows, err := TimeTable(plays, p.config.StartTimePrecision)
	if err != nil {
		return nil, err
	}
	times, err := p.writeTime(ctx, timeRows)
	if err != nil {
		return nil, err
	}
	result.Tables = append(result.Tables, times)

	songs, err := ReadSongs(ctx, p.session.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read song data: %w", err)
	}
	result.RecordsRead += int64(len(songs))

	playRows, err := SongplaysTable(plays, songs, p.config.StartTimePrecision)
	if err != nil {
		return nil, err
	}
	if len(playRows) == 0 {
		log.Warn("No song plays matched the catalog", zap.Int("song_plays", len(plays)))
	}
	songplays, err := p.writeSongplays(ctx, playRows)
	if err != nil {
		return nil, err
	}
	result.Tables = append(result.Tables, songplays)

	result.Duration = time.Since(start)
	log.Info("Log data processed",
		zap.Int64("records", result.RecordsRead),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// writeTime stores start_time as a DATE or as a millisecond TIMESTAMP,
// following the configured precision.
func (p *Pipeline) writeTime(ctx context.Context, rows []TimeRow) (*table.Result, error) {
	if p.config.StartTimePrecision == PrecisionTimestamp {
		return writeTable(ctx, p, TimeTimestampSpec, convertRows(rows, TimeRow.TimestampRow))
	}
	return writeTable(ctx, p, TimeDateSpec, convertRows(rows, TimeRow.DateRow))
}

func (p *Pipeline) writeSongplays(ctx context.Context, rows []SongplayRow) (*table.Result, error) {
	if p.config.StartTimePrecision == PrecisionTimestamp {
		return writeTable(ctx, p, SongplaysTimestampSpec, convertRows(rows, SongplayRow.TimestampRow))
	}
	return writeTable(ctx, p, SongplaysDateSpec, convertRows(rows, SongplayRow.DateRow))
}

func convertRows[S, D any](rows []S, convert func(S) D) []D {
	out := make([]D, len(rows))
	for i, r := range rows {
		out[i] = convert(r)
	}
	return out
}
