package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrInvalidPath is returned when a bundle path escapes the bundle root.
var ErrInvalidPath = errors.New("invalid bundle path")

// Bundle is an in-memory set of generated files keyed by slash-separated path.
// The zero value is ready to use.
type Bundle struct {
	files map[string][]byte
}

// Add stores data at p, replacing any previous content.
func (b *Bundle) Add(p string, data []byte) error {
	if !fs.ValidPath(p) || p == "." {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if b.files == nil {
		b.files = make(map[string][]byte)
	}
	b.files[p] = bytes.Clone(data)
	return nil
}

// File returns the content stored at p.
func (b *Bundle) File(p string) ([]byte, bool) {
	data, ok := b.files[p]
	return data, ok
}

// Paths returns all file paths sorted for deterministic output.
func (b *Bundle) Paths() []string {
	out := make([]string, 0, len(b.files))
	for p := range b.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of files.
func (b *Bundle) Len() int {
	return len(b.files)
}

// FS exposes the bundle as a read-only file system.
func (b *Bundle) FS() fs.FS {
	return bundleFS{b: b}
}

// WriteDir writes the bundle to dir. Files are first written to a temporary
// sibling directory that is renamed into place, so dir either holds the
// complete bundle or is left as it was.
func (b *Bundle) WriteDir(dir string) (err error) {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	for _, p := range b.Paths() {
		target := filepath.Join(tmp, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, b.files[p], 0o644); err != nil {
			return err
		}
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return err
	}

	var backup string
	if _, statErr := os.Stat(dir); statErr == nil {
		backup = tmp + ".old"
		if err := os.Rename(dir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dir)
		}
		return err
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// SafeName maps a tool or resource name onto a file name. Names that need
// rewriting get a short hash suffix so distinct names never collide.
func SafeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	safe := sb.String()
	if safe == name && safe != "" {
		return safe
	}
	h := fnv.New32a()
	_, _ = io.WriteString(h, name)
	return fmt.Sprintf("%s-%08x", safe, h.Sum32())
}

// bundleFS adapts a Bundle to fs.FS.
type bundleFS struct {
	b *Bundle
}

func (f bundleFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, ok := f.b.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memFile{name: path.Base(name), r: bytes.NewReader(data), size: int64(len(data))}, nil
}

func (f bundleFS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	data, ok := f.b.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return bytes.Clone(data), nil
}

type memFile struct {
	name string
	r    *bytes.Reader
	size int64
}

func (m *memFile) Stat() (fs.FileInfo, error) { return memInfo{name: m.name, size: m.size}, nil }
func (m *memFile) Read(p []byte) (int, error) { return m.r.Read(p) }
func (m *memFile) Close() error               { return nil }

type memInfo struct {
	name string
	size int64
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o444 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }
