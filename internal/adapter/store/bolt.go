package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"smartfind/internal/domain"
)

const openTimeout = 2 * time.Second

func boltOptions() *bbolt.Options {
	return &bbolt.Options{Timeout: openTimeout}
}

// openExisting opens a persisted file and validates its schema. It never
// creates the file: a missing file is domain.ErrNotFound.
func openExisting(path, kind string) (*bbolt.DB, SchemaInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, SchemaInfo{}, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		return nil, SchemaInfo{}, fmt.Errorf("%w: stat %s: %v", domain.ErrIO, path, err)
	}
	if info.Size() == 0 {
		return nil, SchemaInfo{}, fmt.Errorf("%w: %s is empty", domain.ErrCorruptState, path)
	}

	db, err := bbolt.Open(path, 0600, boltOptions())
	if err != nil {
		return nil, SchemaInfo{}, classifyOpenError(path, err)
	}

	var schema SchemaInfo
	err = db.View(func(tx *bbolt.Tx) error {
		var err error
		schema, err = readSchema(tx)
		if err != nil {
			return err
		}
		return checkSchema(schema, kind)
	})
	if err != nil {
		db.Close()
		return nil, SchemaInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return db, schema, nil
}

func classifyOpenError(path string, err error) error {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, bbolt.ErrTimeout):
		return fmt.Errorf("%w: %s is locked by another process: %v", domain.ErrIO, path, err)
	case errors.As(err, &pathErr):
		return fmt.Errorf("%w: open %s: %v", domain.ErrIO, path, err)
	default:
		// bbolt.ErrInvalid, ErrChecksum, ErrVersionMismatch and friends.
		return fmt.Errorf("%w: open %s: %v", domain.ErrCorruptState, path, err)
	}
}

// replaceFile writes a complete new database next to path and renames it
// into place. A crash at any point leaves either the old or the new file.
func replaceFile(path string, schema SchemaInfo, fill func(tx *bbolt.Tx) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrIO, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	db, err := bbolt.Open(tmpPath, 0600, boltOptions())
	if err != nil {
		return fmt.Errorf("%w: open temp db: %v", domain.ErrIO, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if err := writeSchema(tx, schema); err != nil {
			return err
		}
		return fill(tx)
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: write %s: %v", domain.ErrIO, tmpPath, err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", domain.ErrIO, tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", domain.ErrIO, path, err)
	}
	committed = true
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a rename. Best effort: some
// platforms do not support syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

// staleTempAge is how old a temp file must be before it is considered a
// leftover. Younger ones may belong to a replacement still in progress in
// another process.
const staleTempAge = 10 * time.Minute

// removeStaleTemps deletes leftovers of interrupted replacements.
func removeStaleTemps(path string) {
	matches, _ := filepath.Glob(path + ".tmp-*")
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || time.Since(info.ModTime()) < staleTempAge {
			continue
		}
		os.Remove(m)
	}
}

// wrapIO tags a transaction failure as ErrIO unless it already carries a
// domain classification.
func wrapIO(err error) error {
	if errors.Is(err, domain.ErrCorruptState) || errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrIO) || errors.Is(err, domain.ErrDimensionMismatch) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrIO, err)
}

func corrupt(path, what string, err error) error {
	return fmt.Errorf("%w: %s: %s: %v", domain.ErrCorruptState, path, what, err)
}
