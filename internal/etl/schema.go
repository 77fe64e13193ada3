package etl

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/segmentio/encoding/json"
)

// ErrNoInput is returned when an input glob matches no objects.
var ErrNoInput = errors.New("no input objects matched")

// SchemaError reports a declared field that no input document carries.
type SchemaError struct {
	Input string
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: field %q not found in any input document", e.Input, e.Field)
}

// FieldTypeError reports a value that cannot be read as its declared type.
type FieldTypeError struct {
	Source string
	Field  string
	Want   FieldType
	Value  interface{}
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("%s: field %q: cannot read %v (%T) as %s", e.Source, e.Field, e.Value, e.Value, e.Want)
}

// FieldType is the declared type of an input field.
type FieldType int

const (
	StringField FieldType = iota
	LongField
	DoubleField
)

func (t FieldType) String() string {
	switch t {
	case StringField:
		return "string"
	case LongField:
		return "long"
	case DoubleField:
		return "double"
	}
	return "unknown"
}

// Field is a declared input field.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the set of fields a transform reads from an input.
type Schema struct {
	Name   string
	Fields []Field
}

// Check returns a SchemaError for the first declared field missing from
// columns.
func (s Schema) Check(columns map[string]struct{}) error {
	for _, f := range s.Fields {
		if _, ok := columns[f.Name]; !ok {
			return &SchemaError{Input: s.Name, Field: f.Name}
		}
	}
	return nil
}

// SongSchema declares the catalog fields read by the transforms.
var SongSchema = Schema{
	Name: "song_data",
	Fields: []Field{
		{Name: "song_id", Type: StringField},
		{Name: "title", Type: StringField},
		{Name: "artist_id", Type: StringField},
		{Name: "artist_name", Type: StringField},
		{Name: "artist_location", Type: StringField},
		{Name: "artist_latitude", Type: DoubleField},
		{Name: "artist_longitude", Type: DoubleField},
		{Name: "year", Type: LongField},
		{Name: "duration", Type: DoubleField},
	},
}

// EventSchema declares the activity log fields read by the transforms.
var EventSchema = Schema{
	Name: "log_data",
	Fields: []Field{
		{Name: "page", Type: StringField},
		{Name: "userId", Type: StringField},
		{Name: "firstName", Type: StringField},
		{Name: "lastName", Type: StringField},
		{Name: "gender", Type: StringField},
		{Name: "level", Type: StringField},
		{Name: "ts", Type: LongField},
		{Name: "artist", Type: StringField},
		{Name: "song", Type: StringField},
		{Name: "sessionId", Type: LongField},
		{Name: "location", Type: StringField},
		{Name: "userAgent", Type: StringField},
	},
}

// document is one decoded JSON object and where it came from.
type document struct {
	source string
	values map[string]interface{}
}

// convert reads a non-null JSON value as t. It returns a *string, *int64
// or *float64.
func (t FieldType) convert(v interface{}) (interface{}, bool) {
	switch t {
	case StringField:
		switch x := v.(type) {
		case string:
			return &x, true
		case json.Number:
			s := x.String()
			return &s, true
		case bool:
			s := strconv.FormatBool(x)
			return &s, true
		}
	case LongField:
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return &i, true
			}
		}
	case DoubleField:
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				return &f, true
			}
		}
	}
	return nil, false
}

// fieldValues holds the typed values of one document by field name.
// Absent and null fields have no entry.
type fieldValues map[string]interface{}

// decode converts the declared fields of doc to their declared types.
// Undeclared keys are ignored.
func (s Schema) decode(doc document) (fieldValues, error) {
	out := make(fieldValues, len(s.Fields))
	for _, f := range s.Fields {
		raw, ok := doc.values[f.Name]
		if !ok || raw == nil {
			continue
		}
		v, ok := f.Type.convert(raw)
		if !ok {
			return nil, &FieldTypeError{Source: doc.source, Field: f.Name, Want: f.Type, Value: raw}
		}
		out[f.Name] = v
	}
	return out, nil
}

func (v fieldValues) str(name string) *string {
	p, _ := v[name].(*string)
	return p
}

func (v fieldValues) long(name string) *int64 {
	p, _ := v[name].(*int64)
	return p
}

func (v fieldValues) double(name string) *float64 {
	p, _ := v[name].(*float64)
	return p
}

func decodeSong(doc document) (SongRecord, error) {
	v, err := SongSchema.decode(doc)
	if err != nil {
		return SongRecord{}, err
	}
	return SongRecord{
		SongID:          v.str("song_id"),
		Title:           v.str("title"),
		ArtistID:        v.str("artist_id"),
		ArtistName:      v.str("artist_name"),
		ArtistLocation:  v.str("artist_location"),
		ArtistLatitude:  v.double("artist_latitude"),
		ArtistLongitude: v.double("artist_longitude"),
		Year:            v.long("year"),
		Duration:        v.double("duration"),
	}, nil
}

func decodeEvent(doc document) (EventRecord, error) {
	v, err := EventSchema.decode(doc)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		Page:      v.str("page"),
		UserID:    v.str("userId"),
		FirstName: v.str("firstName"),
		LastName:  v.str("lastName"),
		Gender:    v.str("gender"),
		Level:     v.str("level"),
		TS:        v.long("ts"),
		Artist:    v.str("artist"),
		Song:      v.str("song"),
		SessionID: v.long("sessionId"),
		Location:  v.str("location"),
		UserAgent: v.str("userAgent"),
		source:    doc.source,
	}, nil
}
