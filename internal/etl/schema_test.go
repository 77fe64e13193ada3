package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/sparkify-lake/internal/storage"
)

func TestReadSongs(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemStore()
	catalogFixture(t, s)

	songs, err := ReadSongs(ctx, s)
	require.NoError(t, err)
	require.Len(t, songs, 3)

	assert.Equal(t, SongRecord{
		SongID:         strp("T1"),
		Title:          strp("Y"),
		ArtistID:       strp("A1"),
		ArtistName:     strp("X"),
		ArtistLocation: strp(""),
		Year:           i64p(2000),
		Duration:       f64p(180.5),
	}, songs[0])
	assert.Equal(t, 35.14968, *songs[1].ArtistLatitude)
	assert.Equal(t, "T3", *songs[2].SongID)
}

func TestReadEvents(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemStore()
	logFixture(t, s)

	events, err := ReadEvents(ctx, s)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, "39", *events[0].UserID)
	assert.Equal(t, int64(1541903636796), *events[0].TS)
	assert.Equal(t, int64(38), *events[0].SessionID)
	assert.Nil(t, events[1].Song)
	assert.Nil(t, events[3].UserID)
	assert.Equal(t, "log_data/2018/12/2018-12-01-events.json#1", events[3].source)
}

func TestReadMissingField(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemStore()
	// no document carries duration
	putObject(t, s, "song_data/A/A/A/T.json", `{"artist_id": "A1", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "X", "song_id": "T1", "title": "Y", "year": 2000}`)

	_, err := ReadSongs(ctx, s)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, "duration", schemaErr.Field)
	assert.Equal(t, "song_data", schemaErr.Input)
}

func TestReadFieldAbsentFromSomeDocuments(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemStore()
	catalogFixture(t, s)
	putObject(t, s, "song_data/B/B/B/T.json", `{"artist_id": "A9", "song_id": "T9"}`)

	songs, err := ReadSongs(ctx, s)
	require.NoError(t, err)
	require.Len(t, songs, 4)
	assert.Nil(t, songs[3].Duration)
	assert.Nil(t, songs[3].Title)
}

func TestReadTypeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("LongFromFraction", func(t *testing.T) {
		s := storage.NewMemStore()
		putObject(t, s, "song_data/A/A/A/T.json", `{"artist_id": "A1", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "X", "song_id": "T1", "title": "Y", "duration": 1, "year": 2000.5}`)
		_, err := ReadSongs(ctx, s)
		var typeErr *FieldTypeError
		require.True(t, errors.As(err, &typeErr), "got %v", err)
		assert.Equal(t, "year", typeErr.Field)
		assert.Equal(t, LongField, typeErr.Want)
		assert.Equal(t, "song_data/A/A/A/T.json#1", typeErr.Source)
	})

	t.Run("StringFromObject", func(t *testing.T) {
		s := storage.NewMemStore()
		putObject(t, s, "song_data/A/A/A/T.json", `{"artist_id": {"nested": true}, "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "X", "song_id": "T1", "title": "Y", "duration": 1, "year": 2000}`)
		_, err := ReadSongs(ctx, s)
		var typeErr *FieldTypeError
		require.True(t, errors.As(err, &typeErr), "got %v", err)
		assert.Equal(t, "artist_id", typeErr.Field)
	})

	t.Run("NumericUserID", func(t *testing.T) {
		s := storage.NewMemStore()
		putObject(t, s, "log_data/2018/11/e.json", `{"page":"NextSong","userId":7,"firstName":"A","lastName":"B","gender":"F","level":"free","ts":1,"artist":"X","song":"Y","sessionId":1,"location":"L","userAgent":"U"}`)
		events, err := ReadEvents(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "7", *events[0].UserID)
	})
}

func TestReadNoInput(t *testing.T) {
	ctx := context.Background()
	_, err := ReadEvents(ctx, storage.NewMemStore())
	assert.True(t, errors.Is(err, ErrNoInput))
}

func TestReadMalformedDocument(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemStore()
	putObject(t, s, "log_data/2018/11/e.json", `{"page": "NextSong"`)
	_, err := ReadEvents(ctx, s)
	assert.Error(t, err)
}

func TestSchemaCheck(t *testing.T) {
	schema := Schema{Name: "in", Fields: []Field{{Name: "a"}, {Name: "b", Type: LongField}}}
	assert.NoError(t, schema.Check(map[string]struct{}{"a": {}, "b": {}, "c": {}}))

	err := schema.Check(map[string]struct{}{"a": {}})
	require.Error(t, err)
	assert.Equal(t, `in: field "b" not found in any input document`, err.Error())
	assert.Equal(t, "double", DoubleField.String())
}

func TestSchemaDecode(t *testing.T) {
	schema := Schema{Name: "in", Fields: []Field{
		{Name: "s", Type: StringField},
		{Name: "l", Type: LongField},
		{Name: "d", Type: DoubleField},
	}}
	doc := document{source: "k#1", values: map[string]interface{}{
		"s":     json.Number("12"),
		"l":     json.Number("7"),
		"d":     json.Number("7"),
		"extra": "ignored",
	}}

	v, err := schema.decode(doc)
	require.NoError(t, err)
	assert.Equal(t, "12", *v.str("s"))
	assert.Equal(t, int64(7), *v.long("l"))
	assert.Equal(t, 7.0, *v.double("d"))
	assert.NotContains(t, v, "extra")

	t.Run("DeclaredTypeDrivesConversion", func(t *testing.T) {
		// the same value read as a string once the declaration changes
		retyped := Schema{Name: "in", Fields: []Field{{Name: "l", Type: StringField}}}
		v, err := retyped.decode(doc)
		require.NoError(t, err)
		assert.Equal(t, "7", *v.str("l"))
		assert.Nil(t, v.long("l"))
	})

	t.Run("NullAndAbsent", func(t *testing.T) {
		v, err := schema.decode(document{values: map[string]interface{}{"s": nil}})
		require.NoError(t, err)
		assert.Nil(t, v.str("s"))
		assert.Nil(t, v.long("l"))
	})

	t.Run("Mismatch", func(t *testing.T) {
		_, err := schema.decode(document{source: "k#2", values: map[string]interface{}{"d": "fast"}})
		var typeErr *FieldTypeError
		require.True(t, errors.As(err, &typeErr), "got %v", err)
		assert.Equal(t, DoubleField, typeErr.Want)
		assert.Equal(t, "k#2", typeErr.Source)
	})
}
