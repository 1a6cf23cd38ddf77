// Package store persists small ordered lists as a single JSON array per file.
//
// Entries already on disk are carried as raw JSON and never decoded into T, so
// fields this server does not know about survive reads and rewrites. Only new
// entries and seeds are encoded from T.
//
// Every mutation is a whole-file read-modify-write. A per-list mutex
// serialises mutations inside one process and writes land through a temp file
// plus rename, so readers never observe a half-written array.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bledemo/internal/metrics"
)

var (
	// ErrNotFound is returned by mutations that require the backing file.
	ErrNotFound = errors.New("list file not found")

	ErrIndexOutOfRange = errors.New("index out of range")
)

// SeedFunc builds the list reported while the backing file does not exist.
type SeedFunc[T any] func(now time.Time) []T

type List[T any] struct {
	mu   sync.Mutex
	name string
	path string
	seed SeedFunc[T]
	now  func() time.Time
}

type Option[T any] func(*List[T])

// WithClock overrides time.Now for seed timestamps.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(l *List[T]) {
		l.now = now
	}
}

// NewList returns a list backed by the JSON file at path. name labels the
// list in metrics and errors. seed may be nil, in which case an absent file
// reads as an empty list.
func NewList[T any](name, path string, seed SeedFunc[T], opts ...Option[T]) *List[T] {
	l := &List[T]{
		name: name,
		path: path,
		seed: seed,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *List[T]) Name() string {
	return l.name
}

func (l *List[T]) Path() string {
	return l.path
}

// Load returns the persisted entries as stored. When the file is absent the
// seed is returned without being written to disk.
func (l *List[T]) Load() ([]json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.read()
	metrics.ObserveStoreOp(l.name, "load", ignoreNotFound(err))
	if errors.Is(err, ErrNotFound) {
		if l.seed == nil {
			return []json.RawMessage{}, nil
		}
		return encodeAll(l.seed(l.now()))
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Append adds item to the end of the list, creating the file if needed, and
// returns the new length.
func (l *List[T]) Append(item T) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.read()
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.ObserveStoreOp(l.name, "append", err)
		return 0, err
	}

	raw, err := json.Marshal(item)
	if err != nil {
		metrics.ObserveStoreOp(l.name, "append", err)
		return 0, fmt.Errorf("encode %s entry: %w", l.name, err)
	}

	items = append(items, raw)
	err = l.write(items)
	metrics.ObserveStoreOp(l.name, "append", err)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// RemoveAt deletes the entry at index and returns it as stored. It fails
// with ErrNotFound if the file does not exist and ErrIndexOutOfRange if index
// is outside [0, len).
func (l *List[T]) RemoveAt(index int) (json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.read()
	if err != nil {
		metrics.ObserveStoreOp(l.name, "remove", err)
		return nil, err
	}

	if index < 0 || index >= len(items) {
		metrics.ObserveStoreOp(l.name, "remove", ErrIndexOutOfRange)
		return nil, fmt.Errorf("%s[%d] of %d: %w", l.name, index, len(items), ErrIndexOutOfRange)
	}

	removed := items[index]
	items = append(items[:index], items[index+1:]...)

	err = l.write(items)
	metrics.ObserveStoreOp(l.name, "remove", err)
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (l *List[T]) read() ([]json.RawMessage, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", l.path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.path, err)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

func (l *List[T]) write(items []json.RawMessage) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.name, err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", l.path, err)
	}

	metrics.SetStoreEntries(l.name, len(items))
	return nil
}

func encodeAll[T any](items []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		raw, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("encode seed: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
