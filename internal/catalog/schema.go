package catalog

import "fmt"

// InitSchema creates all required tables if they don't already exist. Safe
// to call on every startup — existing data is never touched.
func (s *Store) InitSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS disks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			mount_path TEXT NOT NULL,
			total_bytes INTEGER NOT NULL DEFAULT 0,
			used_bytes INTEGER NOT NULL DEFAULT 0,
			free_bytes INTEGER NOT NULL DEFAULT 0,
			filesystem TEXT NOT NULL DEFAULT '',
			included INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			disk_id INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			file_name TEXT NOT NULL,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			is_directory INTEGER NOT NULL DEFAULT 0,
			parent_path TEXT NOT NULL DEFAULT '',
			mtime INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (disk_id) REFERENCES disks(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_files_disk_id ON files(disk_id)`,
		`CREATE INDEX IF NOT EXISTS idx_files_disk_size ON files(disk_id, size_bytes DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_files_parent ON files(disk_id, parent_path)`,

		`CREATE TABLE IF NOT EXISTS folder_sizes (
			disk_id INTEGER NOT NULL,
			folder_path TEXT NOT NULL,
			total_bytes INTEGER NOT NULL DEFAULT 0,
			file_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (disk_id, folder_path),
			FOREIGN KEY (disk_id) REFERENCES disks(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS balance_plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			tolerance REAL NOT NULL DEFAULT 0,
			slider_alpha REAL NOT NULL DEFAULT 0,
			target_utilization REAL NOT NULL DEFAULT 0,
			initial_imbalance REAL NOT NULL DEFAULT 0,
			projected_imbalance REAL NOT NULL DEFAULT 0,
			total_moves INTEGER NOT NULL DEFAULT 0,
			total_bytes_to_move INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'planned'
		)`,

		`CREATE TABLE IF NOT EXISTS planned_moves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id INTEGER NOT NULL,
			file_id INTEGER NOT NULL,
			source_disk_id INTEGER NOT NULL,
			target_disk_id INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			file_size INTEGER NOT NULL DEFAULT 0,
			exec_order INTEGER NOT NULL DEFAULT 0,
			phase INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (plan_id) REFERENCES balance_plans(id) ON DELETE CASCADE,
			FOREIGN KEY (file_id) REFERENCES files(id),
			FOREIGN KEY (source_disk_id) REFERENCES disks(id),
			FOREIGN KEY (target_disk_id) REFERENCES disks(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_planned_moves_plan ON planned_moves(plan_id, exec_order)`,
		`CREATE INDEX IF NOT EXISTS idx_planned_moves_phase ON planned_moves(plan_id, phase, status)`,
	}

	for _, stmt := range tables {
		if _, err := s.db.Exec(stmt); err != nil {
			n := len(stmt)
			if n > 80 {
				n = 80
			}
			return fmt.Errorf("schema init failed: %w\nstatement: %s", err, stmt[:n])
		}
	}
	return nil
}
