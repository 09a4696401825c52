// Package scanner walks a disk's mount point and catalogs every file into
// the Store, replacing that disk's prior catalog entries transactionally.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rebalanced/internal/catalog"
	"rebalanced/internal/events"
	"rebalanced/internal/pathsafety"
)

// insertBatchSize caps how many rows accumulate before a flush to SQLite.
const insertBatchSize = 2000

// progressInterval is the minimum gap between scan_progress events.
const progressInterval = 500 * time.Millisecond

// Stats summarizes one disk's completed scan.
type Stats struct {
	FilesScanned   uint64
	BytesCataloged uint64
}

// ScanDisk walks mountPath and replaces diskID's catalog with what it finds.
// numThreads controls how many subtrees are walked concurrently; values <= 1
// walk serially. The whole operation (clear + inserts + folder recompute) is
// one transaction — a cancelled or failed scan leaves the prior catalog
// untouched.
func ScanDisk(ctx context.Context, store *catalog.Store, hub *events.Hub, diskID int64, mountPath string, numThreads int) (Stats, error) {
	if err := pathsafety.Check(mountPath); err != nil {
		return Stats{}, fmt.Errorf("scan disk %d: %w", diskID, err)
	}

	info, err := os.Stat(mountPath)
	if err != nil {
		return Stats{}, fmt.Errorf("scan disk %d: mount path %s: %w", diskID, mountPath, err)
	}
	if !info.IsDir() {
		return Stats{}, fmt.Errorf("scan disk %d: mount path %s is not a directory", diskID, mountPath)
	}

	diskName := filepath.Base(mountPath)

	if err := store.BeginDiskScan(diskID); err != nil {
		return Stats{}, fmt.Errorf("scan disk %d: %w", diskID, err)
	}

	stats, walkErr := runWalk(ctx, store, hub, diskID, mountPath, diskName, numThreads)
	if walkErr != nil {
		if rbErr := store.RollbackDiskScan(); rbErr != nil {
			return Stats{}, fmt.Errorf("scan disk %d: %w (rollback also failed: %v)", diskID, walkErr, rbErr)
		}
		return Stats{}, walkErr
	}

	if err := store.CommitDiskScan(diskID); err != nil {
		return Stats{}, fmt.Errorf("scan disk %d: %w", diskID, err)
	}

	hub.ScanDiskComplete(events.ScanDiskCompleteData{
		Disk:       diskName,
		TotalFiles: stats.FilesScanned,
		TotalBytes: stats.BytesCataloged,
	})

	return stats, nil
}

// entryToInsert converts one walked filesystem entry into a catalog row, or
// returns ok=false if it should be skipped (unreadable metadata, an unsafe
// path, or the mount root itself).
func entryToInsert(mountPath, path string, d fs.DirEntry, diskID int64) (catalog.FileInsert, bool) {
	if path == mountPath {
		return catalog.FileInsert{}, false
	}
	if err := pathsafety.Check(path); err != nil {
		return catalog.FileInsert{}, false
	}

	rel, err := filepath.Rel(mountPath, path)
	if err != nil {
		return catalog.FileInsert{}, false
	}

	info, err := d.Info()
	if err != nil {
		return catalog.FileInsert{}, false
	}

	isDir := d.IsDir()
	var size int64
	if !isDir {
		size = info.Size()
	}

	parent := filepath.Dir(rel)

	return catalog.FileInsert{
		DiskID:      diskID,
		FilePath:    rel,
		FileName:    d.Name(),
		SizeBytes:   size,
		IsDirectory: isDir,
		ParentPath:  parent,
		MTime:       info.ModTime().Unix(),
	}, true
}

// runWalk performs the filesystem walk, fanning out across numThreads
// workers over the mount's top-level subtrees when numThreads > 1, and
// funnels every discovered entry through a single writer goroutine so
// SQLite inserts — already serialized by Store's own mutex — aren't
// fought over by concurrent batches.
func runWalk(ctx context.Context, store *catalog.Store, hub *events.Hub, diskID int64, mountPath, diskName string, numThreads int) (Stats, error) {
	if numThreads < 1 {
		numThreads = 1
	}

	roots, err := topLevelWalkRoots(mountPath)
	if err != nil {
		return Stats{}, fmt.Errorf("list %s: %w", mountPath, err)
	}

	entries := make(chan catalog.FileInsert, insertBatchSize)
	cancelled := make(chan struct{})
	var cancelOnce sync.Once
	signalCancel := func() { cancelOnce.Do(func() { close(cancelled) }) }

	rootCh := make(chan string, len(roots))
	for _, r := range roots {
		rootCh <- r
	}
	close(rootCh)

	var wg sync.WaitGroup
	for i := 0; i < numThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for root := range rootCh {
				if walkSubtree(ctx, mountPath, root, diskID, entries, cancelled) != nil {
					signalCancel()
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(entries)
	}()

	stats, writeErr := writeEntries(store, hub, diskID, diskName, entries)

	select {
	case <-cancelled:
		return Stats{}, fmt.Errorf("scan cancelled")
	default:
	}
	if ctx.Err() != nil {
		return Stats{}, fmt.Errorf("scan cancelled: %w", ctx.Err())
	}
	if writeErr != nil {
		return Stats{}, writeErr
	}
	return stats, nil
}

// topLevelWalkRoots returns the mount point's immediate children (files and
// directories alike) as independent walk roots, so numThreads workers can
// each walk a disjoint subtree concurrently.
func topLevelWalkRoots(mountPath string) ([]string, error) {
	entries, err := os.ReadDir(mountPath)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	roots := make([]string, 0, len(entries))
	for _, e := range entries {
		roots = append(roots, filepath.Join(mountPath, e.Name()))
	}
	return roots, nil
}

// walkSubtree walks one root, sending every FileInsert it finds on entries.
func walkSubtree(ctx context.Context, mountPath, root string, diskID int64, entries chan<- catalog.FileInsert, cancelled <-chan struct{}) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cancelled:
			return fmt.Errorf("cancelled")
		default:
		}

		if err != nil {
			return nil // unreadable entry: skip, don't abort the whole scan
		}

		insert, ok := entryToInsert(mountPath, path, d, diskID)
		if !ok {
			return nil
		}

		select {
		case entries <- insert:
		case <-ctx.Done():
			return ctx.Err()
		case <-cancelled:
			return fmt.Errorf("cancelled")
		}
		return nil
	})
}

// writeEntries is the single writer goroutine: it batches incoming entries
// and flushes them to the store, publishing throttled progress events.
func writeEntries(store *catalog.Store, hub *events.Hub, diskID int64, diskName string, entries <-chan catalog.FileInsert) (Stats, error) {
	var stats Stats
	batch := make([]catalog.FileInsert, 0, insertBatchSize)
	lastProgress := time.Now()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.InsertFilesBatch(batch); err != nil {
			return fmt.Errorf("insert files batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for entry := range entries {
		if !entry.IsDirectory {
			stats.FilesScanned++
			stats.BytesCataloged += uint64(entry.SizeBytes)
		}
		batch = append(batch, entry)

		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return Stats{}, err
			}
		}

		if time.Since(lastProgress) >= progressInterval {
			hub.ScanProgress(events.ScanProgressData{
				Disk:           diskName,
				FilesScanned:   stats.FilesScanned,
				BytesCataloged: stats.BytesCataloged,
			})
			lastProgress = time.Now()
		}
	}

	if err := flush(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
