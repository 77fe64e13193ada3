package etl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/sparkify-lake/internal/session"
	"github.com/raaihank/sparkify-lake/internal/table"
)

// Pipeline runs the song and log stages against one session
type Pipeline struct {
	session *session.Session
	config  *Config
	logger  *zap.Logger
}

// NewPipeline creates a new ETL pipeline
func NewPipeline(sess *session.Session, config *Config, logger *zap.Logger) *Pipeline {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	if cfg.StartTimePrecision == "" {
		cfg.StartTimePrecision = PrecisionDate
	}
	if logger == nil {
		logger = sess.Logger
	}
	return &Pipeline{
		session: sess,
		config:  &cfg,
		logger:  logger,
	}
}

// Run processes the song data and then the log data. The log stage only
// starts once every song table is committed; a failure in the log stage
// leaves the song tables in place.
func (p *Pipeline) Run(ctx context.Context) (*ProcessingResult, error) {
	start := time.Now()
	result := &ProcessingResult{RunID: p.session.RunID}

	p.logger.Info("Starting ETL pipeline",
		zap.String("input", p.session.Input.URL()),
		zap.String("output", p.session.Output.URL()),
		zap.String("start_time_precision", string(p.config.StartTimePrecision)))

	songs, err := p.ProcessSongData(ctx)
	if err != nil {
		return result, fmt.Errorf("song data stage failed: %w", err)
	}
	result.Stages = append(result.Stages, songs)

	logs, err := p.ProcessLogData(ctx)
	if err != nil {
		return result, fmt.Errorf("log data stage failed: %w", err)
	}
	result.Stages = append(result.Stages, logs)

	result.Duration = time.Since(start)
	p.logger.Info("ETL pipeline completed", zap.Duration("total_duration", result.Duration))
	return result, nil
}

// Inspect summarizes the committed output tables.
func (p *Pipeline) Inspect(ctx context.Context) ([]*table.Result, error) {
	var results []*table.Result
	for _, t := range []struct{ name, path string }{
		{TracksSpec.Name, TracksSpec.Path},
		{ArtistsSpec.Name, ArtistsSpec.Path},
		{UsersSpec.Name, UsersSpec.Path},
		{TimeDateSpec.Name, TimeDateSpec.Path},
		{SongplaysDateSpec.Name, SongplaysDateSpec.Path},
	} {
		res, err := table.Inspect(ctx, p.session.Output, t.name, t.path)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", t.name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// writeTable writes rows with the pipeline's table options and logs the
// outcome.
func writeTable[T any](ctx context.Context, p *Pipeline, spec table.Spec[T], rows []T) (*table.Result, error) {
	start := time.Now()
	res, err := table.Write(ctx, p.session.Output, spec, rows, table.Options{
		RunID:          p.session.RunID,
		Compression:    p.config.Compression,
		MaxRowsPerFile: p.config.MaxRowsPerFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", spec.Name, err)
	}
	p.logger.Info("Table written",
		zap.String("table", res.Name),
		zap.String("root", p.session.Output.URL()),
		zap.String("path", res.Path),
		zap.Int64("rows", res.Rows),
		zap.Int("partitions", res.Partitions),
		zap.Int("files", res.Files),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}
