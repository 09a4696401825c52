// Package planner computes a minimum-cost rebalancing plan: which files
// move from which disk to which, so that every disk's utilization lands
// within tolerance of the array-wide average.
package planner

import (
	"fmt"
	"sort"

	"rebalanced/internal/catalog"
)

// diskClass buckets a disk by how far its utilization sits from target.
type diskClass int

const (
	classOverUtilized diskClass = iota
	classAboveAverage
	classBelowAverage
	classUnderUtilized
)

// diskState tracks a disk's simulated used bytes as the planner tentatively
// assigns moves to it, without touching the database until the whole plan
// is computed.
type diskState struct {
	disk    catalog.Disk
	class   diskClass
	simUsed int64
}

func (ds diskState) simUtilization() float64 {
	if ds.disk.TotalBytes <= 0 {
		return 0
	}
	return float64(ds.simUsed) / float64(ds.disk.TotalBytes)
}

func (ds diskState) simFree() int64 {
	free := ds.disk.TotalBytes - ds.simUsed
	if free < 0 {
		return 0
	}
	return free
}

// Result summarizes one planning pass, independent of how it's persisted.
type Result struct {
	PlanID             int64
	TargetUtilization  float64
	InitialImbalance   float64
	ProjectedImbalance float64
	TotalMoves         int
	TotalBytes         int64
}

// GeneratePlan classifies every included, non-excluded disk, collects
// size-descending move candidates from over-utilized and above-average
// disks, greedily
// assigns each to the target disk with the most remaining headroom toward
// the target utilization, and persists the resulting plan.
//
// sliderAlpha ranges 0.0 (fewest moves / high tolerance) to 1.0 (perfect
// balance). maxTolerance is the widest tolerance allowed (e.g. 0.15 for
// 15%). minFreeHeadroom is the minimum bytes every disk must keep free.
func GeneratePlan(store *catalog.Store, sliderAlpha, maxTolerance float64, minFreeHeadroom int64, excludedDiskIDs []int64) (Result, error) {
	allDisks, err := store.GetAllDisks()
	if err != nil {
		return Result{}, fmt.Errorf("generate plan: %w", err)
	}

	excluded := make(map[int64]bool, len(excludedDiskIDs))
	for _, id := range excludedDiskIDs {
		excluded[id] = true
	}

	var disks []catalog.Disk
	for _, d := range allDisks {
		if d.Included && !excluded[d.ID] {
			disks = append(disks, d)
		}
	}

	if len(disks) < 2 {
		return Result{}, fmt.Errorf("generate plan: need at least 2 included disks to balance, have %d", len(disks))
	}

	var totalUsed, totalCapacity int64
	for _, d := range disks {
		totalUsed += d.UsedBytes
		totalCapacity += d.TotalBytes
	}
	if totalCapacity == 0 {
		return Result{}, fmt.Errorf("generate plan: total disk capacity is zero")
	}

	targetUtilization := float64(totalUsed) / float64(totalCapacity)
	effectiveTolerance := maxTolerance * (1 - sliderAlpha)

	diskStates := classifyDisks(disks, targetUtilization, effectiveTolerance)
	initialImbalance := maxImbalance(diskStates, targetUtilization)

	hasOuter := false
	for _, ds := range diskStates {
		if ds.class == classOverUtilized || ds.class == classUnderUtilized {
			hasOuter = true
			break
		}
	}

	if !hasOuter {
		planID, err := store.CreatePlan(effectiveTolerance, sliderAlpha, targetUtilization, initialImbalance)
		if err != nil {
			return Result{}, fmt.Errorf("generate plan: %w", err)
		}
		if err := store.UpdatePlanProjections(planID, initialImbalance, 0, 0); err != nil {
			return Result{}, fmt.Errorf("generate plan: %w", err)
		}
		return Result{
			PlanID:             planID,
			TargetUtilization:  targetUtilization,
			InitialImbalance:   initialImbalance,
			ProjectedImbalance: initialImbalance,
		}, nil
	}

	planID, err := store.CreatePlan(effectiveTolerance, sliderAlpha, targetUtilization, initialImbalance)
	if err != nil {
		return Result{}, fmt.Errorf("generate plan: %w", err)
	}

	candidates, err := collectCandidates(store, diskStates)
	if err != nil {
		return Result{}, fmt.Errorf("generate plan: %w", err)
	}

	diskIdx := make(map[int64]int, len(diskStates))
	for i, ds := range diskStates {
		diskIdx[ds.disk.ID] = i
	}

	moves, totalBytes := assignMoves(planID, candidates, diskStates, diskIdx, targetUtilization, effectiveTolerance, minFreeHeadroom)
	projectedImbalance := maxImbalance(diskStates, targetUtilization)

	if len(moves) > 0 {
		if err := store.InsertPlannedMoves(planID, moves); err != nil {
			return Result{}, fmt.Errorf("generate plan: %w", err)
		}
	}
	if err := store.UpdatePlanProjections(planID, projectedImbalance, len(moves), totalBytes); err != nil {
		return Result{}, fmt.Errorf("generate plan: %w", err)
	}

	return Result{
		PlanID:             planID,
		TargetUtilization:  targetUtilization,
		InitialImbalance:   initialImbalance,
		ProjectedImbalance: projectedImbalance,
		TotalMoves:         len(moves),
		TotalBytes:         totalBytes,
	}, nil
}

func maxImbalance(states []diskState, target float64) float64 {
	var max float64
	for _, ds := range states {
		d := ds.simUtilization() - target
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}

func isBalanced(states []diskState, target, tolerance float64) bool {
	for _, ds := range states {
		d := ds.simUtilization() - target
		if d < 0 {
			d = -d
		}
		if d > tolerance {
			return false
		}
	}
	return true
}

func classifyDisks(disks []catalog.Disk, targetUtilization, effectiveTolerance float64) []diskState {
	states := make([]diskState, len(disks))
	for i, d := range disks {
		util := d.Utilization()
		var class diskClass
		switch {
		case util > targetUtilization+effectiveTolerance:
			class = classOverUtilized
		case util > targetUtilization:
			class = classAboveAverage
		case util < targetUtilization-effectiveTolerance:
			class = classUnderUtilized
		default:
			class = classBelowAverage
		}
		states[i] = diskState{disk: d, class: class, simUsed: d.UsedBytes}
	}
	return states
}

func collectCandidates(store *catalog.Store, states []diskState) ([]catalog.FileEntry, error) {
	var candidates []catalog.FileEntry
	for _, ds := range states {
		if ds.class != classOverUtilized && ds.class != classAboveAverage {
			continue
		}
		files, err := store.GetFilesForDisk(ds.disk.ID)
		if err != nil {
			return nil, fmt.Errorf("collect candidates: %w", err)
		}
		candidates = append(candidates, files...)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].SizeBytes > candidates[j].SizeBytes })
	return candidates, nil
}

func assignMoves(planID int64, candidates []catalog.FileEntry, states []diskState, diskIdx map[int64]int, targetUtilization, effectiveTolerance float64, minFreeHeadroom int64) ([]catalog.PlannedMove, int64) {
	var moves []catalog.PlannedMove
	var totalBytes int64

	for _, file := range candidates {
		srcIdx, ok := diskIdx[file.DiskID]
		if !ok {
			continue
		}

		if states[srcIdx].simUtilization() <= targetUtilization+effectiveTolerance {
			continue
		}

		tgtIdx, found := findBestTarget(states, file, targetUtilization, minFreeHeadroom)
		if found {
			moves = append(moves, catalog.PlannedMove{
				PlanID:       planID,
				FileID:       file.ID,
				SourceDiskID: file.DiskID,
				TargetDiskID: states[tgtIdx].disk.ID,
				FilePath:     file.FilePath,
				FileSize:     file.SizeBytes,
				Phase:        1,
				Status:       catalog.MoveStatusPending,
			})

			states[srcIdx].simUsed -= file.SizeBytes
			if states[srcIdx].simUsed < 0 {
				states[srcIdx].simUsed = 0
			}
			states[tgtIdx].simUsed += file.SizeBytes
			totalBytes += file.SizeBytes
		}

		if isBalanced(states, targetUtilization, effectiveTolerance) {
			break
		}
	}

	return moves, totalBytes
}

func findBestTarget(states []diskState, file catalog.FileEntry, targetUtilization float64, minFreeHeadroom int64) (int, bool) {
	bestIdx := -1
	var bestRemaining int64 = -1 << 62

	for i, ds := range states {
		if ds.disk.ID == file.DiskID {
			continue
		}
		if ds.simUtilization() >= targetUtilization {
			continue
		}

		available := ds.simFree() - minFreeHeadroom
		if available < file.SizeBytes {
			continue
		}

		targetUsed := int64(targetUtilization * float64(ds.disk.TotalBytes))
		remaining := targetUsed - ds.simUsed

		if remaining > bestRemaining {
			bestRemaining = remaining
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return 0, false
	}
	return bestIdx, true
}
