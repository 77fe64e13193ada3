package table

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/segmentio/parquet-go"

	"github.com/raaihank/sparkify-lake/internal/storage"
)

// Partition is one directory of a committed table.
type Partition[T any] struct {
	Dir    string
	Values map[string]string
	Rows   []T
}

// Read returns the partitions of the committed table at dir, sorted by
// directory. Partition columns are returned in Values, not in the rows.
func Read[T any](ctx context.Context, store storage.Store, dir string) ([]Partition[T], error) {
	files, err := dataFiles(ctx, store, dir)
	if err != nil {
		return nil, err
	}

	var parts []Partition[T]
	for _, key := range files {
		rel := strings.TrimPrefix(key, storage.Join(dir)+"/")
		pdir := path.Dir(rel)
		if pdir == "." {
			pdir = ""
		}
		rows, err := readFile[T](ctx, store, key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if n := len(parts); n > 0 && parts[n-1].Dir == pdir {
			parts[n-1].Rows = append(parts[n-1].Rows, rows...)
			continue
		}
		parts = append(parts, Partition[T]{Dir: pdir, Values: parseDir(pdir), Rows: rows})
	}
	return parts, nil
}

// Inspect summarizes a committed table from file footers without decoding
// rows.
func Inspect(ctx context.Context, store storage.Store, name, dir string) (*Result, error) {
	files, err := dataFiles(ctx, store, dir)
	if err != nil {
		return nil, err
	}
	result := &Result{Name: name, Path: dir, Files: len(files)}
	dirs := make(map[string]struct{})
	for _, key := range files {
		data, err := readAll(ctx, store, key)
		if err != nil {
			return nil, err
		}
		f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", key, err)
		}
		result.Rows += f.NumRows()
		if f.NumRows() > 0 {
			dirs[path.Dir(key)] = struct{}{}
		}
	}
	result.Partitions = len(dirs)
	return result, nil
}

// dataFiles lists the parquet files of a committed table.
func dataFiles(ctx context.Context, store storage.Store, dir string) ([]string, error) {
	ok, err := store.Exists(ctx, storage.Join(dir, SuccessMarker))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrIncomplete)
	}
	keys, err := store.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, k := range keys {
		if strings.HasSuffix(k, ".parquet") && !strings.Contains(k, stagingDir+"/") {
			files = append(files, k)
		}
	}
	return files, nil
}

func readFile[T any](ctx context.Context, store storage.Store, key string) ([]T, error) {
	data, err := readAll(ctx, store, key)
	if err != nil {
		return nil, err
	}
	r := parquet.NewGenericReader[T](bytes.NewReader(data))
	defer r.Close()

	rows := make([]T, r.NumRows())
	for total := 0; total < len(rows); {
		n, err := r.Read(rows[total:])
		total += n
		if err == io.EOF {
			rows = rows[:total]
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func readAll(ctx context.Context, store storage.Store, key string) ([]byte, error) {
	r, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func parseDir(dir string) map[string]string {
	values := make(map[string]string)
	if dir == "" {
		return values
	}
	for _, seg := range strings.Split(dir, "/") {
		if col, v, ok := strings.Cut(seg, "="); ok {
			values[col] = UnescapeValue(v)
		}
	}
	return values
}
