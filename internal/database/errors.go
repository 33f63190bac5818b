package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure means the store itself is unusable
// (lost connection, corrupt or unreadable file, full or read-only disk), as
// opposed to a problem with one record.
func (e *StorageError) Fatal() bool {
	if errors.Is(e.Err, sql.ErrConnDone) {
		return true
	}
	// database/sql does not export its closed-handle error
	if strings.Contains(e.Err.Error(), "sql: database is closed") {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(e.Err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrIoErr, sqlite3.ErrCorrupt, sqlite3.ErrCantOpen,
			sqlite3.ErrNotADB, sqlite3.ErrFull, sqlite3.ErrReadonly:
			return true
		}
	}
	return false
}

// IsFatal reports whether err carries a fatal StorageError.
func IsFatal(err error) bool {
	var serr *StorageError
	return errors.As(err, &serr) && serr.Fatal()
}

// wrap returns nil for a nil err so call sites can wrap unconditionally.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr *StorageError
	if errors.As(err, &serr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
