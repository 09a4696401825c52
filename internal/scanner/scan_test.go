package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"rebalanced/internal/catalog"
	"rebalanced/internal/events"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeTree(t *testing.T, root string) {
	t.Helper()
	dirs := []string{"movies", "tv/show1"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	files := map[string]string{
		"movies/a.mkv":     "aaaa",
		"movies/b.mkv":     "bb",
		"tv/show1/ep1.mkv": "c",
		"readme.txt":       "hello",
	}
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func TestScanDiskCatalogsFilesAndDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	s := openTestStore(t)
	diskID, err := s.UpsertDisk("disk1", root, 1000, 0, 1000, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk: %v", err)
	}
	hub := events.NewHub(zerolog.Nop())

	stats, err := ScanDisk(context.Background(), s, hub, diskID, root, 2)
	if err != nil {
		t.Fatalf("ScanDisk: %v", err)
	}
	if stats.FilesScanned != 4 {
		t.Errorf("files scanned = %d, want 4", stats.FilesScanned)
	}
	if stats.BytesCataloged != 4+2+1+5 {
		t.Errorf("bytes cataloged = %d, want %d", stats.BytesCataloged, 4+2+1+5)
	}

	files, err := s.GetFilesForDisk(diskID)
	if err != nil {
		t.Fatalf("GetFilesForDisk: %v", err)
	}
	if len(files) != 4 {
		t.Fatalf("cataloged files = %d, want 4 (directories excluded from GetFilesForDisk)", len(files))
	}
}

func TestScanDiskRejectsUnionMountPath(t *testing.T) {
	s := openTestStore(t)
	diskID, err := s.UpsertDisk("disk1", "/mnt/user/disk1", 1000, 0, 1000, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk: %v", err)
	}
	hub := events.NewHub(zerolog.Nop())

	_, err = ScanDisk(context.Background(), s, hub, diskID, "/mnt/user/disk1", 1)
	if err == nil {
		t.Fatal("expected error scanning a /mnt/user/ path")
	}
}

func TestScanDiskCancellationPreservesPriorCatalog(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	s := openTestStore(t)
	diskID, err := s.UpsertDisk("disk1", root, 1000, 0, 1000, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk: %v", err)
	}
	hub := events.NewHub(zerolog.Nop())

	if _, err := ScanDisk(context.Background(), s, hub, diskID, root, 1); err != nil {
		t.Fatalf("initial ScanDisk: %v", err)
	}
	before, err := s.GetFilesForDisk(diskID)
	if err != nil {
		t.Fatalf("GetFilesForDisk: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ScanDisk(ctx, s, hub, diskID, root, 1)
	if err == nil {
		t.Fatal("expected error from a pre-cancelled scan")
	}

	after, err := s.GetFilesForDisk(diskID)
	if err != nil {
		t.Fatalf("GetFilesForDisk: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("catalog after cancelled rescan = %d files, want unchanged %d", len(after), len(before))
	}
}
