package catalog

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a SQLite connection behind a single mutex. SQLite in WAL mode
// supports concurrent readers but only one writer; the daemon's workload is
// batch-dominated (one scan, one plan, one execution at a time — enforced by
// the kernel), so serializing every access here is not a throughput
// bottleneck. See internal/kernel for the higher-level single-operation
// guarantee this relies on.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	scanTx *sql.Tx // open only between BeginDiskScan and Commit/RollbackDiskScan
}

// Open opens (or creates) the SQLite database at path with the durability
// settings the daemon needs: WAL journaling, foreign keys on, "normal"
// synchronous writes.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite + WAL: one connection avoids SQLITE_BUSY under our own mutex
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw connection for schema migration at startup only.
func (s *Store) DB() *sql.DB {
	return s.db
}
