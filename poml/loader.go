package poml

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader reads sources referenced by include and the I/O components.
type Loader interface {
	ReadFile(path string) (string, error)
	ResolvePath(base, rel string) string
}

// DirEntry is one folder listing entry.
type DirEntry struct {
	Name  string
	IsDir bool
}

// DirLister is implemented by loaders that can list directories; the folder
// component needs it.
type DirLister interface {
	ListDir(path string) ([]DirEntry, error)
}

// FileLoader reads from the local file system. Relative paths resolve
// against the including file's directory, then Root.
type FileLoader struct {
	Root string
}

// ResolvePath joins rel to base (or Root when base is empty). Absolute paths
// are returned cleaned.
func (l FileLoader) ResolvePath(base, rel string) string {
	rel = strings.TrimSpace(rel)
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	if base == "" {
		base = l.Root
	}
	return filepath.Join(base, rel)
}

func (l FileLoader) ReadFile(path string) (string, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// ListDir returns entries sorted by name.
func (l FileLoader) ListDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

// MapLoader serves sources from memory. Keys are slash-separated paths.
type MapLoader map[string]string

func (m MapLoader) ResolvePath(base, rel string) string {
	rel = strings.TrimSpace(rel)
	if strings.HasPrefix(rel, "/") || base == "" {
		return filepath.ToSlash(filepath.Clean(rel))
	}
	return filepath.ToSlash(filepath.Join(base, rel))
}

func (m MapLoader) ReadFile(path string) (string, error) {
	body, ok := m[path]
	if !ok {
		return "", &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return body, nil
}

// ListDir lists the immediate children of path derived from the map keys.
func (m MapLoader) ListDir(path string) ([]DirEntry, error) {
	prefix := strings.TrimSuffix(filepath.ToSlash(filepath.Clean(path)), "/") + "/"
	if prefix == "./" {
		prefix = ""
	}
	seen := make(map[string]bool)
	for key := range m {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if name == "" {
			continue
		}
		seen[name] = seen[name] || nested
	}
	if len(seen) == 0 {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: fs.ErrNotExist}
	}
	out := make([]DirEntry, 0, len(seen))
	for name, isDir := range seen {
		out = append(out, DirEntry{Name: name, IsDir: isDir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// isNotFound reports whether err means the source does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
