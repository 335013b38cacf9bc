package uploads

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when a stored filename has no file on disk.
var ErrNotFound = errors.New("file not found")

// MaxPerBatch is the maximum number of files persisted per save call.
const MaxPerBatch = 5

// allowedExtensions is the set of file extensions accepted for upload,
// without the leading dot.
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
	"bmp":  true,
	"pdf":  true,
}

// File is one candidate upload: the client-supplied name and its content.
type File struct {
	Name    string
	Content io.Reader
}

// Store persists uploaded files in a single directory under generated
// unique names. It holds no metadata; the issue record owns the names.
type Store struct {
	root string
}

// New creates the upload directory if needed and returns a Store
// rooted there.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's directory path.
func (s *Store) Root() string {
	return s.root
}

// Allowed reports whether the filename carries an accepted extension.
func Allowed(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return ext != "" && allowedExtensions[ext]
}

// newToken generates the unique prefix for a stored filename.
func newToken() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// sanitize reduces a client filename to a single safe path segment:
// path separators become boundaries, and anything outside
// [A-Za-z0-9._-] is dropped.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		out = "file"
	}
	return out
}

// SaveAll persists up to MaxPerBatch files and returns their stored
// names in input order. Files with a disallowed extension are skipped
// without error; files beyond the cap are ignored.
func (s *Store) SaveAll(files []File) ([]string, error) {
	if len(files) > MaxPerBatch {
		files = files[:MaxPerBatch]
	}

	saved := []string{}
	for _, f := range files {
		if f.Name == "" || f.Content == nil || !Allowed(f.Name) {
			continue
		}
		stored := newToken() + "_" + sanitize(f.Name)
		dst, err := os.Create(filepath.Join(s.root, stored))
		if err != nil {
			return saved, fmt.Errorf("save %s: %w", stored, err)
		}
		if _, err := io.Copy(dst, f.Content); err != nil {
			_ = dst.Close()
			return saved, fmt.Errorf("write %s: %w", stored, err)
		}
		if err := dst.Close(); err != nil {
			return saved, fmt.Errorf("close %s: %w", stored, err)
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

// Remove deletes a stored file. A file that is already gone is success.
func (s *Store) Remove(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Open returns the stored file's content for reading, or ErrNotFound.
func (s *Store) Open(name string) (io.ReadSeekCloser, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("open %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", name, ErrNotFound)
	}
	return f, nil
}

// resolve maps a stored name to its on-disk path. The name must be a
// single path segment; anything else is treated as not found so it can
// never escape the root.
func (s *Store) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("resolve %q: %w", name, ErrNotFound)
	}
	return filepath.Join(s.root, name), nil
}
