package confined

import (
	"errors"
	"fmt"
	"sort"
)

// Collection bounds mirror consensus-level size limits. They are runtime
// parameters so different consensus parameter sets can vary them without
// recompilation.

var (
	ErrOverflow  = errors.New("collection exceeds its confinement bound")
	ErrUnderflow = errors.New("collection is below its minimum size")
)

// OverflowError reports which bound was exceeded.
type OverflowError struct {
	Name string
	Max  int
	Len  int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: %d items exceed the confinement bound of %d", e.Name, e.Len, e.Max)
}

func (e *OverflowError) Is(target error) bool { return target == ErrOverflow }

// UnderflowError reports a collection smaller than its minimum size.
type UnderflowError struct {
	Name string
	Min  int
	Len  int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("%s: %d items are below the minimum size of %d", e.Name, e.Len, e.Min)
}

func (e *UnderflowError) Is(target error) bool { return target == ErrUnderflow }

// CheckLen validates min <= n <= max for the named collection.
func CheckLen(name string, n, min, max int) error {
	if n < min {
		return &UnderflowError{Name: name, Min: min, Len: n}
	}
	if max >= 0 && n > max {
		return &OverflowError{Name: name, Max: max, Len: n}
	}
	return nil
}

// Blob is a size-bounded byte string.
type Blob []byte

// NewBlob validates min <= len(b) <= max and copies b.
func NewBlob(name string, b []byte, min, max int) (Blob, error) {
	if err := CheckLen(name, len(b), min, max); err != nil {
		return nil, err
	}
	out := make(Blob, len(b))
	copy(out, b)
	return out, nil
}

// SortedKeys returns the keys of m in ascending order. Used wherever
// map contents must serialize or traverse deterministically.
func SortedKeys[K ~string | ~uint16 | ~uint32 | ~uint64 | ~int, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
