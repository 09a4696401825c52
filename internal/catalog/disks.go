package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

const diskColumns = "id, name, mount_path, total_bytes, used_bytes, free_bytes, filesystem, included, updated_at"

func scanDisk(row interface{ Scan(...interface{}) error }) (Disk, error) {
	var d Disk
	var fs sql.NullString
	var updatedAt string
	var included int
	if err := row.Scan(&d.ID, &d.Name, &d.MountPath, &d.TotalBytes, &d.UsedBytes, &d.FreeBytes, &fs, &included, &updatedAt); err != nil {
		return Disk{}, err
	}
	d.Filesystem = fs.String
	d.Included = included != 0
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return d, nil
}

// UpsertDisk inserts or updates a disk keyed on name, returning its id in a
// single round trip.
func (s *Store) UpsertDisk(name, mountPath string, total, used, free int64, filesystem string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO disks (name, mount_path, total_bytes, used_bytes, free_bytes, filesystem, included, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			mount_path = excluded.mount_path,
			total_bytes = excluded.total_bytes,
			used_bytes = excluded.used_bytes,
			free_bytes = excluded.free_bytes,
			filesystem = excluded.filesystem,
			updated_at = excluded.updated_at
	`, name, mountPath, total, used, free, filesystem, now)
	if err != nil {
		return 0, fmt.Errorf("upsert disk %s: %w", name, err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM disks WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert disk %s: read back id: %w", name, err)
	}
	return id, nil
}

// GetAllDisks returns every disk, ordered by name.
func (s *Store) GetAllDisks() ([]Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryDisks(`SELECT ` + diskColumns + ` FROM disks ORDER BY name`)
}

// GetIncludedDisks returns only disks with included = true, ordered by name.
func (s *Store) GetIncludedDisks() ([]Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryDisks(`SELECT ` + diskColumns + ` FROM disks WHERE included = 1 ORDER BY name`)
}

func (s *Store) queryDisks(query string, args ...interface{}) ([]Disk, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query disks: %w", err)
	}
	defer rows.Close()

	var disks []Disk
	for rows.Next() {
		d, err := scanDisk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan disk row: %w", err)
		}
		disks = append(disks, d)
	}
	return disks, rows.Err()
}

// GetDisk fetches one disk by id.
func (s *Store) GetDisk(id int64) (Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT `+diskColumns+` FROM disks WHERE id = ?`, id)
	d, err := scanDisk(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Disk{}, fmt.Errorf("disk %d: %w", id, err)
		}
		return Disk{}, fmt.Errorf("get disk %d: %w", id, err)
	}
	return d, nil
}

// SetDiskIncluded toggles whether a disk participates in planning.
func (s *Store) SetDiskIncluded(id int64, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := 0
	if included {
		v = 1
	}
	_, err := s.db.Exec(`UPDATE disks SET included = ?, updated_at = ? WHERE id = ?`, v, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("set disk %d included=%v: %w", id, included, err)
	}
	return nil
}
