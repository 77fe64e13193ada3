package etl

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raaihank/sparkify-lake/internal/storage"
)

func strp(s string) *string   { return &s }
func i64p(v int64) *int64     { return &v }
func f64p(v float64) *float64 { return &v }

func putObject(t *testing.T, s storage.Store, key, body string) {
	t.Helper()
	w, err := s.Create(context.Background(), key)
	require.NoError(t, err)
	_, err = io.WriteString(w, body)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readObject(t *testing.T, s storage.Store, key string) []byte {
	t.Helper()
	r, err := s.Open(context.Background(), key)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return b
}

// catalogFixture mirrors the layout of the song dataset: one document per
// object, three directory levels below song_data.
func catalogFixture(t *testing.T, s storage.Store) {
	putObject(t, s, "song_data/A/A/A/TRAAAAA.json", `{"num_songs": 1, "artist_id": "A1", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "X", "song_id": "T1", "title": "Y", "duration": 180.5, "year": 2000}`)
	putObject(t, s, "song_data/A/A/B/TRAAAAB.json", `{"num_songs": 1, "artist_id": "A2", "artist_latitude": 35.14968, "artist_longitude": -90.04892, "artist_location": "Memphis, TN", "artist_name": "Z", "song_id": "T2", "title": "Other", "duration": 201.1, "year": 0}`)
	putObject(t, s, "song_data/A/B/A/TRAAABA.json", `{"num_songs": 1, "artist_id": "A1", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "X", "song_id": "T3", "title": "Second", "duration": 99.0, "year": 2001}`)
}

// logFixture mirrors the log dataset: line-delimited events, two directory
// levels below log_data.
func logFixture(t *testing.T, s storage.Store) {
	putObject(t, s, "log_data/2018/11/2018-11-11-events.json",
		`{"artist":"X","auth":"Logged In","firstName":"Ann","gender":"F","itemInSession":0,"lastName":"Lee","length":180.5,"level":"free","location":"Austin, TX","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":38,"song":"Y","status":200,"ts":1541903636796,"userAgent":"Mozilla/5.0","userId":"39"}
{"artist":null,"auth":"Logged In","firstName":"Ann","gender":"F","itemInSession":1,"lastName":"Lee","length":null,"level":"free","location":"Austin, TX","method":"GET","page":"Home","registration":1540919166796.0,"sessionId":38,"song":null,"status":200,"ts":1541903700000,"userAgent":"Mozilla/5.0","userId":"39"}
{"artist":"Nobody","auth":"Logged In","firstName":"Bo","gender":"M","itemInSession":0,"lastName":"Ray","length":120.0,"level":"paid","location":"Reno, NV","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":51,"song":"Unknown","status":200,"ts":1542241826796,"userAgent":"curl/8.0","userId":"12"}
`)
	putObject(t, s, "log_data/2018/12/2018-12-01-events.json",
		`{"artist":"X","auth":"Logged Out","firstName":null,"gender":null,"itemInSession":2,"lastName":null,"length":180.5,"level":"paid","location":null,"method":"PUT","page":"NextSong","registration":null,"sessionId":60,"song":"Y","status":200,"ts":1543622400000,"userAgent":null,"userId":null}
`)
}
