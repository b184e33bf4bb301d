// Package store keeps generated meal images in a single directory. The
// directory listing is the only catalog: files are recognised by name, sorted
// by modification time and trimmed to the newest N after each write.
package store

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"meal-image-service/internal/utils"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// ErrNotFound the requested file is not a stored image
var ErrNotFound = errors.New("image not found")

// generatedName matches <day>-meals-<timestamp>-<randomHex>.<ext>
var generatedName = regexp.MustCompile(`^[a-z0-9]+-meals-([0-9]+)-[0-9a-f]+\.(png|jpg|jpeg|webp)$`)

// Entry one stored image
type Entry struct {
	Name    string
	ModTime time.Time
	Size    int64
	// Created Unix milliseconds from the name
	Created int64
}

// Store a directory of generated images. Writes and cleanup hold the write
// lock, reads hold the read lock, so a file is never removed mid-read.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New opens dir, creating it when missing
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir output directory
func (s *Store) Dir() string {
	return s.dir
}

// NewName builds a cache-busting file name for a composite PNG
func NewName(day string, now time.Time) string {
	return NewNameWithExt(day, ".png", now)
}

// NewNameWithExt like NewName with a custom extension (".jpg", ".webp", ...)
func NewNameWithExt(day, ext string, now time.Time) string {
	slug := utils.Slug(day)
	if slug == "" {
		slug = "day"
	}
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s-meals-%d-%s%s", slug, now.UnixMilli(), utils.RandomHex(4), ext)
}

// IsGenerated reports whether name follows the generated image pattern
func IsGenerated(name string) bool {
	return generatedName.MatchString(name)
}

// CreatedAt the Unix millisecond timestamp embedded in a generated name
func CreatedAt(name string) (int64, bool) {
	m := generatedName.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// ContentType MIME type derived from the extension
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// ETag strong entity tag for file contents
func ETag(data []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(data))
}

// Save writes data under name, then deletes the oldest files so at most keep
// remain, the new one included. Nothing is deleted when the write fails.
func (s *Store) Save(name string, data []byte, keep int) ([]string, error) {
	if !IsGenerated(name) {
		return nil, fmt.Errorf("refusing to save %q: not a generated image name", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(name, data); err != nil {
		return nil, err
	}

	// the new file always counts as one of the kept
	return s.cleanupLocked(keep-1, name)
}

// writeLocked writes through a temp file so readers never see partial data
func (s *Store) writeLocked(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Cleanup deletes every generated file beyond the keep most recent
func (s *Store) Cleanup(keep int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cleanupLocked(keep, "")
}

// cleanupLocked keeps the keep newest files other than exclude
func (s *Store) cleanupLocked(keep int, exclude string) ([]string, error) {
	if keep < 0 {
		keep = 0
	}

	entries, err := s.listLocked()
	if err != nil {
		return nil, err
	}
	if exclude != "" {
		entries = lo.Reject(entries, func(e Entry, _ int) bool {
			return e.Name == exclude
		})
	}
	if len(entries) <= keep {
		return nil, nil
	}

	var (
		removed []string
		errs    error
	)
	for _, e := range entries[keep:] {
		if err := os.Remove(filepath.Join(s.dir, e.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", e.Name, err))
			continue
		}
		removed = append(removed, e.Name)
	}
	return removed, errs
}

// List generated files, newest first
func (s *Store) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listLocked()
}

func (s *Store) listLocked() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	candidates := lo.Filter(dirEntries, func(d fs.DirEntry, _ int) bool {
		return d.Type().IsRegular() && IsGenerated(d.Name())
	})

	entries := make([]Entry, 0, len(candidates))
	for _, d := range candidates {
		info, err := d.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		created, _ := CreatedAt(d.Name())
		entries = append(entries, Entry{
			Name:    d.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
			Created: created,
		})
	}

	// mtime resolution is coarse, equal mtimes fall back to the name timestamp
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.ModTime.Compare(a.ModTime); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Created, a.Created); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})

	return entries, nil
}

// Read returns the contents of a stored image
func (s *Store) Read(name string) ([]byte, Entry, error) {
	if !IsGenerated(name) {
		return nil, Entry{}, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Entry{}, ErrNotFound
		}
		return nil, Entry{}, err
	}
	if !info.Mode().IsRegular() {
		return nil, Entry{}, ErrNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Entry{}, err
	}

	created, _ := CreatedAt(name)
	return data, Entry{Name: name, ModTime: info.ModTime(), Size: info.Size(), Created: created}, nil
}

// Count number of stored images
func (s *Store) Count() int {
	entries, err := s.List()
	if err != nil {
		return 0
	}
	return len(entries)
}
