package etl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/sparkify-lake/internal/table"
)

// TracksSpec partitions tracks by year and artist.
var TracksSpec = table.Spec[TrackRow]{
	Name:        "tracks",
	Path:        TracksPath,
	PartitionBy: []string{"year", "artist_id"},
	Partition: func(r TrackRow) []string {
		return []string{table.Int64Value(r.Year), table.StringValue(r.ArtistID)}
	},
}

// ArtistsSpec is unpartitioned.
var ArtistsSpec = table.Spec[ArtistRow]{
	Name: "artists",
	Path: ArtistsPath,
}

// TracksTable projects each catalog record unchanged onto a track row.
func TracksTable(songs []SongRecord) []TrackRow {
	rows := make([]TrackRow, len(songs))
	for i, s := range songs {
		rows[i] = TrackRow{
			SongID:   s.SongID,
			Title:    s.Title,
			ArtistID: s.ArtistID,
			Year:     s.Year,
			Duration: s.Duration,
		}
	}
	return rows
}

// ArtistsTable returns one row per distinct artist_id, taken from the
// first catalog record carrying it. Records without an artist_id share a
// single row.
func ArtistsTable(songs []SongRecord) []ArtistRow {
	seen := make(map[string]struct{})
	nullSeen := false
	var rows []ArtistRow
	for _, s := range songs {
		if s.ArtistID == nil {
			if nullSeen {
				continue
			}
			nullSeen = true
		} else {
			if _, ok := seen[*s.ArtistID]; ok {
				continue
			}
			seen[*s.ArtistID] = struct{}{}
		}
		rows = append(rows, ArtistRow{
			ArtistID:  s.ArtistID,
			Name:      s.ArtistName,
			Location:  s.ArtistLocation,
			Latitude:  s.ArtistLatitude,
			Longitude: s.ArtistLongitude,
		})
	}
	return rows
}

// ProcessSongData reads the catalog and writes the tracks and artists
// tables.
func (p *Pipeline) ProcessSongData(ctx context.Context) (*StageResult, error) {
	start := time.Now()
	log := p.logger.With(zap.String("stage", "song_data"))
	log.Info("Reading song data", zap.String("glob", SongDataGlob))

	songs, err := ReadSongs(ctx, p.session.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read song data: %w", err)
	}
	result := &StageResult{Stage: "song_data", RecordsRead: int64(len(songs))}
	log.Info("Song data read", zap.Int("records", len(songs)))

	tracks, err := writeTable(ctx, p, TracksSpec, TracksTable(songs))
	if err != nil {
		return nil, err
	}
	result.Tables = append(result.Tables, tracks)

	artists, err := writeTable(ctx, p, ArtistsSpec, ArtistsTable(songs))
	if err != nil {
		return nil, err
	}
	result.Tables = append(result.Tables, artists)

	result.Duration = time.Since(start)
	log.Info("Song data processed",
		zap.Int64("records", result.RecordsRead),
		zap.Duration("duration", result.Duration))
	return result, nil
}
