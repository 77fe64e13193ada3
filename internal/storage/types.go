package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotExist is returned when a key is not present in a store.
var ErrNotExist = errors.New("object does not exist")

// Store is a flat key space of objects rooted at a location. Keys are
// slash separated and relative to the root.
type Store interface {
	// URL returns the root location of the store.
	URL() string

	// List returns every key under prefix, recursively, in sorted order.
	// A missing prefix yields an empty list.
	List(ctx context.Context, prefix string) ([]string, error)

	// Open returns a reader for the object at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Create returns a writer for the object at key. The object is only
	// complete once Close returns without error.
	Create(ctx context.Context, key string) (io.WriteCloser, error)

	// Rename moves the object at from to to, replacing any existing object.
	Rename(ctx context.Context, from, to string) error

	// RemoveAll removes the object at prefix and everything below it.
	RemoveAll(ctx context.Context, prefix string) error

	// Exists reports whether an object is present at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Credentials are static object-storage credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Empty reports whether neither credential is set.
func (c Credentials) Empty() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == ""
}

// Options configure the backend selected by Open.
type Options struct {
	Credentials       Credentials
	Region            string
	Endpoint          string
	ForcePathStyle    bool
	RequestsPerSecond float64
}

// Scheme identifies a storage backend.
type Scheme string

const (
	SchemeLocal Scheme = "file"
	SchemeS3    Scheme = "s3"
)

// Location is a parsed storage root.
type Location struct {
	Scheme Scheme
	Bucket string
	Prefix string
	Path   string
}

// ParseLocation parses a storage root. s3, s3a and s3n URLs select object
// storage; any other value, with or without a file:// prefix, is a local
// directory.
func ParseLocation(raw string) Location {
	for _, scheme := range []string{"s3://", "s3a://", "s3n://"} {
		if strings.HasPrefix(raw, scheme) {
			rest := strings.TrimPrefix(raw, scheme)
			bucket, prefix, _ := strings.Cut(rest, "/")
			return Location{
				Scheme: SchemeS3,
				Bucket: bucket,
				Prefix: cleanKey(prefix),
			}
		}
	}
	return Location{
		Scheme: SchemeLocal,
		Path:   strings.TrimPrefix(raw, "file://"),
	}
}

// IsObjectStorage reports whether raw names an object-storage location.
func IsObjectStorage(raw string) bool {
	return ParseLocation(raw).Scheme == SchemeS3
}

// Join joins key elements with single slashes, dropping empty elements.
func Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		if e = cleanKey(e); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

// cleanKey trims surrounding slashes and collapses repeated ones.
func cleanKey(key string) string {
	fields := strings.FieldsFunc(key, func(r rune) bool { return r == '/' })
	return strings.Join(fields, "/")
}
