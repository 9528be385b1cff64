package flagcube

import (
	"fmt"

	"github.com/hupe1980/flagcube/internal/cellstore"
	"github.com/hupe1980/flagcube/internal/flagword"
	"github.com/hupe1980/flagcube/internal/rowstore"
)

// EstimateMemoryUsage returns the bytes needed by a compact flag grid of the
// given extent: one flag word per (channel, baseline, time slot).
//
// Callers use it to decide whether compact storage is affordable before
// allocating.
func EstimateMemoryUsage(numChannels, numBaselines, numTimeSlots int) int64 {
	return int64(numChannels) * int64(numBaselines) * int64(numTimeSlots) * flagword.Size
}

// storagePlan is what allocation will build and reserve.
type storagePlan struct {
	mode  Mode
	depth int
	bytes int64
}

// planStorage picks the storage mode and, for compact storage, the deepest
// time ring that fits the available memory.
//
// available < 0 means memory is unlimited.
func planStorage(shape Shape, numAgents int, o *options, available int64) (storagePlan, error) {
	mode := flagword.SelectMode(numAgents, shape.NumCorrelations, flagword.Width, o.wideMode == WideForce)
	if mode == ModeWide && o.wideMode == WideDisabled {
		return storagePlan{}, fmt.Errorf("%w: %d agents and %d correlations do not fit %d bits",
			ErrCapacityExceeded, numAgents, shape.NumCorrelations, flagword.Width)
	}

	if mode == ModeWide {
		bytes := cellstore.WideBytes(shape.NumCorrelations, shape.NumChannels, shape.NumBaselines) +
			rowstore.WideBytes(shape.NumBaselines, shape.NumTimeSlots)
		if available >= 0 && bytes > available {
			return storagePlan{}, fmt.Errorf("%w: wide storage needs %d bytes, %d available",
				ErrMemoryLimitExceeded, bytes, available)
		}
		return storagePlan{mode: mode, depth: 1, bytes: bytes}, nil
	}

	rowBytes := EstimateMemoryUsage(1, shape.NumBaselines, shape.NumTimeSlots)
	slotBytes := EstimateMemoryUsage(shape.NumChannels, shape.NumBaselines, 1)

	depth := shape.NumTimeSlots
	if o.timeWindow > 0 {
		depth = min(depth, o.timeWindow)
	}
	if available >= 0 {
		fit := (available - rowBytes) / slotBytes
		depth = int(min(int64(depth), fit))
	}
	if depth < 1 {
		return storagePlan{}, fmt.Errorf("%w: one time slot needs %d bytes, %d available",
			ErrMemoryLimitExceeded, rowBytes+slotBytes, available)
	}

	return storagePlan{
		mode:  mode,
		depth: depth,
		bytes: rowBytes + int64(depth)*slotBytes,
	}, nil
}

// StorageEstimate describes the storage an allocation would build.
type StorageEstimate struct {
	Mode  string `json:"mode"`
	Depth int    `json:"depth"`
	Bytes int64  `json:"bytes"`
}

// EstimateStorage reports what allocating shape for numAgents agents under
// optFns would build, without reserving any memory.
func EstimateStorage(shape Shape, numAgents int, optFns ...Option) (StorageEstimate, error) {
	if err := shape.Validate(); err != nil {
		return StorageEstimate{}, err
	}
	if numAgents < 1 {
		return StorageEstimate{}, fmt.Errorf("%w: need at least one agent", ErrInvalidMask)
	}

	o := applyOptions(optFns)
	plan, err := planStorage(shape, numAgents, &o, o.rc.MemoryAvailable())
	if err != nil {
		return StorageEstimate{}, err
	}
	return StorageEstimate{Mode: plan.mode.String(), Depth: plan.depth, Bytes: plan.bytes}, nil
}
