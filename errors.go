package flagcube

import (
	"errors"
	"fmt"

	"github.com/hupe1980/flagcube/internal/cellstore"
	"github.com/hupe1980/flagcube/internal/conv"
	"github.com/hupe1980/flagcube/internal/flagword"
	"github.com/hupe1980/flagcube/resource"
)

var (
	// ErrNotInitialized is returned when an agent operation runs before storage
	// was allocated by Init.
	ErrNotInitialized = errors.New("flag storage not initialized")

	// ErrInvalidPosition is returned when a time, channel or baseline index is
	// outside the allocated range.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrShapeMismatch is returned when an external frame disagrees with the
	// allocated shape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrCapacityExceeded is returned when agents and correlations do not fit a
	// flag word and wide mode was disabled.
	ErrCapacityExceeded = errors.New("flag word capacity exceeded")

	// ErrAlreadyAllocated is returned when an agent is declared after storage
	// was allocated.
	ErrAlreadyAllocated = errors.New("flag storage already allocated")

	// ErrClosed is returned when a closed agent is used.
	ErrClosed = errors.New("agent closed")

	// ErrNoSource is returned by Load when no flag source is configured.
	ErrNoSource = errors.New("no flag source configured")

	// ErrNoSink is returned by Publish when no flag sink is configured.
	ErrNoSink = errors.New("no flag sink configured")

	// ErrInvalidShape is returned for non-positive dimensions or more than 64
	// correlations.
	ErrInvalidShape = errors.New("invalid shape")

	// ErrInvalidMask is returned when a correlation mask selects nothing.
	ErrInvalidMask = errors.New("invalid correlation mask")

	// ErrMemoryLimitExceeded is returned when not even a single time slot of
	// flag storage fits the memory budget.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// ShapeMismatchError reports which dimension of a frame disagrees with the
// allocated storage.
type ShapeMismatchError struct {
	Field    string
	Expected int
	Actual   int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s: expected %d, got %d", e.Field, e.Expected, e.Actual)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, cellstore.ErrInvalidPosition) {
		return fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	if errors.Is(err, flagword.ErrCapacityExceeded) || errors.Is(err, conv.ErrOverflow) {
		return fmt.Errorf("%w: %w", ErrCapacityExceeded, err)
	}

	return err
}
