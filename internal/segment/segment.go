// Package segment provides access to named file segments on a block storage
// volume.
package segment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOutsideRoot is returned when a path resolves to a location outside the
// store's root.
var ErrOutsideRoot = errors.New("path outside of store root")

// ErrNotDir is returned when a dir of the store is not a directory.
var ErrNotDir = errors.New("not a directory")

// Segment is an open file segment.
type Segment interface {
	io.ReadSeekCloser
}

// Entry is a single item of a directory listing.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

func (e Entry) String() string {
	if e.IsDir {
		return fmt.Sprintf("[DIR ] %s", e.Name)
	}
	return fmt.Sprintf("[FILE] %s (size = %d)", e.Name, e.Size)
}

// Store opens segments by name and lists directories.
type Store interface {
	// Open opens the segment name inside dir.
	Open(name, dir string) (Segment, error)

	// List lists the entries of dir.
	List(dir string) ([]Entry, error)

	// IsDir returns true if dir exists and is a directory.
	IsDir(dir string) (bool, error)
}

// DirStore is a Store backed by a directory of the local filesystem. Dirs
// passed to its methods are relative to the root; they may be absolute
// (starting with "/") or relative, but never resolve outside of it.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at root.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: filepath.Clean(root)}
}

// Root returns the root dir of the store.
func (s *DirStore) Root() string {
	return s.root
}

// Resolve returns the cleaned store path of name inside dir ("/" being the
// root of the store).
func Resolve(dir, name string) (string, error) {
	joined := filepath.ToSlash(filepath.Join(dir, name))
	if hasDotDot(joined) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, joined)
	}
	return filepath.ToSlash(filepath.Clean("/" + joined)), nil
}

// hasDotDot returns true if any element of a relative path climbs above its
// start.
func hasDotDot(p string) bool {
	depth := 0
	for _, el := range strings.Split(p, "/") {
		switch el {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}

func (s *DirStore) path(dir, name string) (string, error) {
	p, err := Resolve(dir, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(p)), nil
}

// Open opens the file name inside dir.
func (s *DirStore) Open(name, dir string) (Segment, error) {
	p, err := s.path(dir, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err != nil {
		f.Close()
		return nil, err
	} else if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", name)
	}
	return f, nil
}

// List returns the entries of dir, directories first and then by name.
func (s *DirStore) List(dir string) ([]Entry, error) {
	p, err := s.path(dir, "")
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	res := make([]Entry, 0, len(des))
	for _, de := range des {
		e := Entry{Name: de.Name(), IsDir: de.IsDir()}
		if !e.IsDir {
			fi, err := de.Info()
			if err != nil {
				return nil, err
			}
			e.Size = fi.Size()
		}
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].IsDir != res[j].IsDir {
			return res[i].IsDir
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

// IsDir returns true if dir exists in the store and is a directory.
func (s *DirStore) IsDir(dir string) (bool, error) {
	p, err := s.path(dir, "")
	if err != nil {
		return false, err
	}
	st, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.IsDir(), nil
}
