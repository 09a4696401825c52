package catalog

import (
	"database/sql"
	"fmt"
)

// BeginDiskScan opens a transaction scoped to one disk's scan. It deletes any
// existing file rows for that disk up front — a scan always replaces the
// prior catalog for the disk it covers — and holds the transaction open
// across subsequent InsertFilesBatch calls until CommitDiskScan or
// RollbackDiskScan closes it.
func (s *Store) BeginDiskScan(diskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanTx != nil {
		return fmt.Errorf("begin disk scan %d: a scan transaction is already open", diskID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin disk scan %d: %w", diskID, err)
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE disk_id = ?`, diskID); err != nil {
		tx.Rollback()
		return fmt.Errorf("begin disk scan %d: clear prior files: %w", diskID, err)
	}
	if _, err := tx.Exec(`DELETE FROM folder_sizes WHERE disk_id = ?`, diskID); err != nil {
		tx.Rollback()
		return fmt.Errorf("begin disk scan %d: clear prior folder sizes: %w", diskID, err)
	}
	s.scanTx = tx
	return nil
}

// InsertFilesBatch appends a batch of catalog rows within the open scan
// transaction. The scanner calls this every insertBatchSize entries rather
// than once per file, to keep the single SQLite writer from becoming the
// bottleneck on large disks.
func (s *Store) InsertFilesBatch(entries []FileInsert) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanTx == nil {
		return fmt.Errorf("insert files batch: no scan transaction open")
	}

	stmt, err := s.scanTx.Prepare(`
		INSERT INTO files (disk_id, file_path, file_name, size_bytes, is_directory, parent_path, mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert files batch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		isDir := 0
		if e.IsDirectory {
			isDir = 1
		}
		if _, err := stmt.Exec(e.DiskID, e.FilePath, e.FileName, e.SizeBytes, isDir, e.ParentPath, e.MTime); err != nil {
			return fmt.Errorf("insert files batch: insert %s: %w", e.FilePath, err)
		}
	}
	return nil
}

// CommitDiskScan recomputes folder_sizes for the disk from the files just
// inserted and commits the scan transaction.
func (s *Store) CommitDiskScan(diskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanTx == nil {
		return fmt.Errorf("commit disk scan %d: no scan transaction open", diskID)
	}
	tx := s.scanTx
	s.scanTx = nil

	_, err := tx.Exec(`
		INSERT INTO folder_sizes (disk_id, folder_path, total_bytes, file_count)
		SELECT disk_id, parent_path, SUM(size_bytes), COUNT(*)
		FROM files
		WHERE disk_id = ? AND is_directory = 0
		GROUP BY disk_id, parent_path
	`, diskID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("commit disk scan %d: recompute folder sizes: %w", diskID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit disk scan %d: %w", diskID, err)
	}
	return nil
}

// RollbackDiskScan discards the open scan transaction. The delete of the
// disk's prior file and folder rows ran inside that same transaction, so the
// rollback restores the catalog from the disk's last committed scan.
func (s *Store) RollbackDiskScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanTx == nil {
		return nil
	}
	tx := s.scanTx
	s.scanTx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback disk scan: %w", err)
	}
	return nil
}

// GetFilesForDisk returns every cataloged file on a disk, largest first —
// the order the planner consumes candidates in.
func (s *Store) GetFilesForDisk(diskID int64) ([]FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, disk_id, file_path, file_name, size_bytes, is_directory, parent_path, mtime
		FROM files
		WHERE disk_id = ? AND is_directory = 0
		ORDER BY size_bytes DESC
	`, diskID)
	if err != nil {
		return nil, fmt.Errorf("get files for disk %d: %w", diskID, err)
	}
	defer rows.Close()

	var out []FileEntry
	for rows.Next() {
		var f FileEntry
		var isDir int
		if err := rows.Scan(&f.ID, &f.DiskID, &f.FilePath, &f.FileName, &f.SizeBytes, &isDir, &f.ParentPath, &f.MTime); err != nil {
			return nil, fmt.Errorf("get files for disk %d: scan: %w", diskID, err)
		}
		f.IsDirectory = isDir != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFile fetches one file row by id, used by the executor to resolve a
// planned move's source path.
func (s *Store) GetFile(id int64) (FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f FileEntry
	var isDir int
	err := s.db.QueryRow(`
		SELECT id, disk_id, file_path, file_name, size_bytes, is_directory, parent_path, mtime
		FROM files WHERE id = ?
	`, id).Scan(&f.ID, &f.DiskID, &f.FilePath, &f.FileName, &f.SizeBytes, &isDir, &f.ParentPath, &f.MTime)
	if err != nil {
		if err == sql.ErrNoRows {
			return FileEntry{}, fmt.Errorf("file %d: %w", id, err)
		}
		return FileEntry{}, fmt.Errorf("get file %d: %w", id, err)
	}
	f.IsDirectory = isDir != 0
	return f, nil
}
