// Package session provides the execution context shared by the pipeline
// stages: the input and output stores and the run identity.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/sparkify-lake/internal/config"
	"github.com/raaihank/sparkify-lake/internal/storage"
)

// Session is the long-lived handle used by every stage of a run. It is
// never mutated after Acquire returns.
type Session struct {
	RunID  string
	Input  storage.Store
	Output storage.Store
	Logger *zap.Logger
}

// Acquire validates the configuration and opens the input and output
// stores, handing the configured credentials to the storage clients.
func Acquire(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("no configuration")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := storage.Options{
		Credentials: storage.Credentials{
			AccessKeyID:     cfg.Keys.AWSAccessKeyID,
			SecretAccessKey: cfg.Keys.AWSSecretAccessKey,
		},
		Region:            cfg.Storage.Region,
		Endpoint:          cfg.Storage.Endpoint,
		ForcePathStyle:    cfg.Storage.ForcePathStyle,
		RequestsPerSecond: cfg.Storage.RequestsPerSecond,
	}

	input, err := storage.Open(ctx, cfg.Paths.InputData, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open input %s: %w", cfg.Paths.InputData, err)
	}
	output, err := storage.Open(ctx, cfg.Paths.OutputData, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open output %s: %w", cfg.Paths.OutputData, err)
	}

	s := New(input, output, logger)
	s.Logger.Info("Session acquired",
		zap.String("input", input.URL()),
		zap.String("output", output.URL()))
	return s, nil
}

// New returns a session over already opened stores.
func New(input, output storage.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	return &Session{
		RunID:  runID,
		Input:  input,
		Output: output,
		Logger: logger.With(zap.String("run_id", runID)),
	}
}

// Close removes what is left of the run's staging area.
func (s *Session) Close(ctx context.Context) error {
	if err := s.Output.RemoveAll(ctx, storage.Join("_temporary", s.RunID)); err != nil {
		return fmt.Errorf("failed to clean staging area: %w", err)
	}
	return nil
}
