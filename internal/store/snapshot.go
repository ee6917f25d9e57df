package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/raphaelgruber/seedforge/internal/models"
)

// Snapshotter rewrites the output file with the full accumulated record list.
// Every Save replaces the previous file through a temp-file rename, so readers
// never observe a partially written snapshot.
//
// Save is not safe for concurrent use; the dispatch engine calls it from its
// single collecting goroutine.
type Snapshotter struct {
	path string
	lock *flock.Flock
}

// NewSnapshotter creates a snapshotter for the given output path.
func NewSnapshotter(path string) *Snapshotter {
	return &Snapshotter{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the output file path.
func (s *Snapshotter) Path() string {
	return s.path
}

// Lock takes the exclusive output lock for the duration of a run and checks that
// the output can be replaced: its directory must accept a temp file and the path
// must not be a directory.
func (s *Snapshotter) Lock() error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrOutputUnwritable, dir)
	}
	if info, err := os.Stat(s.path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrOutputUnwritable, s.path)
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutputLocked, s.path)
	}

	if err := probeWritable(s.path); err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("%w: %w", ErrOutputUnwritable, err)
	}
	return nil
}

// Unlock releases the output lock. The lock file stays on disk: removing it would
// let a concurrent run lock a fresh inode while another still holds the old one.
func (s *Snapshotter) Unlock() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release output lock: %w", err)
	}
	return nil
}

// probeWritable creates and removes a temp file next to path, the same way
// writeFileAtomic stages a snapshot.
func probeWritable(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Remove(name)
}

// Save writes records as an indented JSON array with keys in instruction, input,
// output order. Identical input produces byte-identical files.
func (s *Snapshotter) Save(records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("%w: encode: %w", ErrSnapshotWrite, err)
	}

	if err := writeFileAtomic(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory, syncs it and
// renames it over path.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
