package etl

import (
	"context"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"

	"github.com/raaihank/sparkify-lake/internal/storage"
)

// readDocuments decodes every JSON object in the objects matching pattern.
// Objects are read in key order and may hold any number of concatenated
// or line-delimited objects. The returned column set is the union of keys
// seen across all documents.
func readDocuments(ctx context.Context, store storage.Store, pattern string) ([]document, map[string]struct{}, error) {
	keys, err := storage.Glob(ctx, store, pattern)
	if err != nil {
		return nil, nil, err
	}
	if len(keys) == 0 {
		return nil, nil, fmt.Errorf("%s%s: %w", store.URL(), pattern, ErrNoInput)
	}

	var docs []document
	columns := make(map[string]struct{})
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		err := decodeObject(ctx, store, key, func(doc document) {
			for col := range doc.values {
				columns[col] = struct{}{}
			}
			docs = append(docs, doc)
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return docs, columns, nil
}

func decodeObject(ctx context.Context, store storage.Store, key string, emit func(document)) error {
	r, err := store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer r.Close()

	dec := json.NewDecoder(r)
	dec.UseNumber()
	n := 0
	for {
		var values map[string]interface{}
		err := dec.Decode(&values)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode %s (document %d): %w", key, n+1, err)
		}
		n++
		emit(document{source: fmt.Sprintf("%s#%d", key, n), values: values})
	}
}

// ReadSongs reads and decodes the catalog documents under the input root.
func ReadSongs(ctx context.Context, store storage.Store) ([]SongRecord, error) {
	docs, columns, err := readDocuments(ctx, store, SongDataGlob)
	if err != nil {
		return nil, err
	}
	if err := SongSchema.Check(columns); err != nil {
		return nil, err
	}
	songs := make([]SongRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeSong(doc)
		if err != nil {
			return nil, err
		}
		songs = append(songs, rec)
	}
	return songs, nil
}

// ReadEvents reads and decodes the activity log documents under the input
// root.
func ReadEvents(ctx context.Context, store storage.Store) ([]EventRecord, error) {
	docs, columns, err := readDocuments(ctx, store, LogDataGlob)
	if err != nil {
		return nil, err
	}
	if err := EventSchema.Check(columns); err != nil {
		return nil, err
	}
	events := make([]EventRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeEvent(doc)
		if err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	return events, nil
}
