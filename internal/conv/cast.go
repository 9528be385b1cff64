package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("integer overflow")

// IntToUint32 converts int to uint32 safely.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: %d cannot be converted to uint32 (negative)", ErrOverflow, v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d cannot be converted to uint32 (too large)", ErrOverflow, v)
	}
	return uint32(v), nil
}

// KeySpace returns n*m as the size of a uint32 key space.
// It fails when either factor is negative or the product does not fit.
func KeySpace(n, m int) (uint32, error) {
	if n < 0 || m < 0 {
		return 0, fmt.Errorf("invalid key space: %d x %d", n, m)
	}
	if n != 0 && uint64(m) > math.MaxUint32/uint64(n) {
		return 0, fmt.Errorf("%w: key space %d x %d exceeds uint32", ErrOverflow, n, m)
	}
	return IntToUint32(n * m)
}
