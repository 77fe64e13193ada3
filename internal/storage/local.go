package storage

import (
	"context"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// FSStore is a Store backed by an afero filesystem. Keys map to paths
// below the filesystem root.
type FSStore struct {
	fs  afero.Fs
	url string
}

// NewFSStore returns a store over fs. url is only used for reporting.
func NewFSStore(fs afero.Fs, url string) *FSStore {
	return &FSStore{fs: fs, url: url}
}

// NewLocalStore returns a store rooted at dir on the local disk.
func NewLocalStore(dir string) (*FSStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating root %s", dir)
	}
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), dir), dir), nil
}

// NewMemStore returns an in-memory store.
func NewMemStore() *FSStore {
	return NewFSStore(afero.NewMemMapFs(), "mem://")
}

func (s *FSStore) URL() string {
	return s.url
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	root := "/" + cleanKey(prefix)
	if _, err := s.fs.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "stat %s", root)
	}

	var keys []string
	err := afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !info.IsDir() {
			keys = append(keys, strings.TrimPrefix(path.Clean(p), "/"))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", root)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open("/" + cleanKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotExist, key)
		}
		return nil, errors.Wrapf(err, "opening %s", key)
	}
	return f, nil
}

func (s *FSStore) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	name := "/" + cleanKey(key)
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating parent of %s", key)
	}
	f, err := s.fs.Create(name)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", key)
	}
	return f, nil
}

func (s *FSStore) Rename(ctx context.Context, from, to string) error {
	dst := "/" + cleanKey(to)
	if err := s.fs.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", to)
	}
	if err := s.fs.Rename("/"+cleanKey(from), dst); err != nil {
		return errors.Wrapf(err, "renaming %s to %s", from, to)
	}
	return nil
}

func (s *FSStore) RemoveAll(ctx context.Context, prefix string) error {
	p := cleanKey(prefix)
	if p == "" {
		return errors.New("refusing to remove store root")
	}
	return errors.Wrapf(s.fs.RemoveAll("/"+p), "removing %s", prefix)
}

func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	info, err := s.fs.Stat("/" + cleanKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "stat %s", key)
	}
	return !info.IsDir(), nil
}
