package table

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/parquet-go"
	"github.com/segmentio/parquet-go/compress"
	"go.uber.org/multierr"

	"github.com/raaihank/sparkify-lake/internal/storage"
)

// partition is one output directory and the rows that belong to it.
type partition[T any] struct {
	dir  string
	rows []T
}

// Write replaces the table at spec.Path with rows. Files are staged under a
// run-scoped temporary directory and moved into place once every file has
// been written; the success marker is written last, so a failed write
// never leaves a readable table behind.
func Write[T any](ctx context.Context, store storage.Store, spec Spec[T], rows []T, opts Options) (*Result, error) {
	if len(spec.PartitionBy) > 0 && spec.Partition == nil {
		return nil, fmt.Errorf("table %s: partition columns without a partition function", spec.Name)
	}
	codec, ext, err := Codec(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", spec.Name, err)
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	staging := storage.Join(stagingDir, runID, spec.Path)
	parts, err := group(spec, rows)
	if err != nil {
		return nil, err
	}

	result := &Result{Name: spec.Name, Path: spec.Path, Rows: int64(len(rows)), Partitions: len(parts)}
	var staged []string
	for _, p := range parts {
		for i, chunk := range chunks(p.rows, opts.MaxRowsPerFile) {
			name := partFileName(i, ext)
			key := storage.Join(staging, p.dir, name)
			if err := writeFile(ctx, store, key, chunk, codec); err != nil {
				return nil, multierr.Append(
					fmt.Errorf("table %s: writing %s: %w", spec.Name, storage.Join(p.dir, name), err),
					store.RemoveAll(ctx, staging),
				)
			}
			staged = append(staged, storage.Join(p.dir, name))
		}
	}
	result.Files = len(staged)

	if err := commit(ctx, store, staging, spec.Path, staged); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("table %s: committing: %w", spec.Name, err),
			store.RemoveAll(ctx, staging),
		)
	}
	return result, nil
}

// group splits rows by partition directory. Rows keep their input order
// inside a partition and partitions are sorted by directory.
func group[T any](spec Spec[T], rows []T) ([]partition[T], error) {
	if len(rows) == 0 || len(spec.PartitionBy) == 0 {
		return []partition[T]{{rows: rows}}, nil
	}

	index := make(map[string]int)
	var parts []partition[T]
	for _, row := range rows {
		values := spec.Partition(row)
		if len(values) != len(spec.PartitionBy) {
			return nil, fmt.Errorf("table %s: got %d partition values for %d columns",
				spec.Name, len(values), len(spec.PartitionBy))
		}
		dir := partitionDir(spec.PartitionBy, values)
		i, ok := index[dir]
		if !ok {
			i = len(parts)
			index[dir] = i
			parts = append(parts, partition[T]{dir: dir})
		}
		parts[i].rows = append(parts[i].rows, row)
	}
	sort.Slice(parts, func(a, b int) bool { return parts[a].dir < parts[b].dir })
	return parts, nil
}

func partitionDir(columns, values []string) string {
	segs := make([]string, len(columns))
	for i, col := range columns {
		v := values[i]
		if v != DefaultPartition {
			v = EscapeValue(v)
		}
		segs[i] = col + "=" + v
	}
	return strings.Join(segs, "/")
}

func chunks[T any](rows []T, size int) [][]T {
	if size <= 0 || len(rows) <= size {
		return [][]T{rows}
	}
	var out [][]T
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

func partFileName(i int, ext string) string {
	if ext == "" {
		return fmt.Sprintf("part-%05d.parquet", i)
	}
	return fmt.Sprintf("part-%05d.%s.parquet", i, ext)
}

func writeFile[T any](ctx context.Context, store storage.Store, key string, rows []T, codec compress.Codec) error {
	w, err := store.Create(ctx, key)
	if err != nil {
		return err
	}
	pw := parquet.NewGenericWriter[T](w, parquet.Compression(codec))
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			return multierr.Combine(err, pw.Close(), w.Close())
		}
	}
	if err := pw.Close(); err != nil {
		return multierr.Append(err, w.Close())
	}
	return w.Close()
}

// commit moves staged files over the previous contents of dest.
func commit(ctx context.Context, store storage.Store, staging, dest string, staged []string) error {
	if err := store.RemoveAll(ctx, storage.Join(dest, SuccessMarker)); err != nil {
		return err
	}
	if err := store.RemoveAll(ctx, dest); err != nil {
		return err
	}
	for _, rel := range staged {
		if err := store.Rename(ctx, storage.Join(staging, rel), storage.Join(dest, rel)); err != nil {
			return err
		}
	}
	if err := store.RemoveAll(ctx, staging); err != nil {
		return err
	}
	w, err := store.Create(ctx, storage.Join(dest, SuccessMarker))
	if err != nil {
		return err
	}
	return w.Close()
}
