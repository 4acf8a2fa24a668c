package db

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	_ "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

// Open opens the SQLite database at path, configures it for a concurrent
// federation workload and creates the schema. The returned handle is
// constructed once at startup and passed to every component that needs it.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for concurrent access
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	// Try to enable WAL2 mode, fall back to WAL if not supported
	var journalMode string
	err = conn.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
	if err != nil || journalMode == "delete" {
		// WAL2 not supported, try regular WAL
		err = conn.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
		if err != nil {
			log.Printf("Warning: Failed to enable WAL mode: %v", err)
		} else {
			log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
		}
	} else {
		log.Printf("Database journal mode: %s", journalMode)
	}

	// Optimize PRAGMAs for a concurrent inbox workload
	conn.Exec("PRAGMA synchronous = NORMAL")
	conn.Exec("PRAGMA cache_size = -64000")
	conn.Exec("PRAGMA temp_store = MEMORY")
	conn.Exec("PRAGMA busy_timeout = 5000")
	conn.Exec("PRAGMA foreign_keys = ON")
	conn.Exec("PRAGMA auto_vacuum = INCREMENTAL")

	d := &DB{db: conn}

	if err := d.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return d, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.db.Close()
}

// busyRetryLimit bounds how often a transaction body is re-run on
// SQLITE_BUSY before the error is surfaced; busy_timeout already absorbs
// short lock contention, so hitting the limit means a genuinely held lock.
const busyRetryLimit = 5
const busyRetryDelay = 50 * time.Millisecond

func isBusyErr(err error) bool {
	var coder interface{ Code() int }
	return errors.As(err, &coder) && coder.Code() == sqlitelib.SQLITE_BUSY
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for attempt := 0; ; attempt++ {
		err = f(tx)
		if err != nil {
			if isBusyErr(err) && attempt < busyRetryLimit {
				time.Sleep(busyRetryDelay)
				continue
			}
			tx.Rollback()
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		return nil
	}
}
