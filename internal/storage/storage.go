package storage

import (
	"context"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Open returns the store for location, selecting the backend from its
// scheme.
func Open(ctx context.Context, location string, opts Options) (Store, error) {
	loc := ParseLocation(location)
	switch loc.Scheme {
	case SchemeS3:
		return NewS3Store(loc.Bucket, loc.Prefix, opts)
	default:
		return NewLocalStore(loc.Path)
	}
}

// Glob returns the keys in s matching pattern, in sorted order. A '*'
// matches within a single path segment.
func Glob(ctx context.Context, s Store, pattern string) ([]string, error) {
	pattern = cleanKey(pattern)
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.Wrapf(err, "compiling glob %q", pattern)
	}

	keys, err := s.List(ctx, staticPrefix(pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "listing for glob %q", pattern)
	}
	var matched []string
	for _, k := range keys {
		if g.Match(k) {
			matched = append(matched, k)
		}
	}
	return matched, nil
}

// staticPrefix returns the leading directories of pattern that contain no
// glob metacharacters.
func staticPrefix(pattern string) string {
	segs := strings.Split(pattern, "/")
	var static []string
	for _, seg := range segs[:len(segs)-1] {
		if strings.ContainsAny(seg, "*?[{\\") {
			break
		}
		static = append(static, seg)
	}
	return strings.Join(static, "/")
}
