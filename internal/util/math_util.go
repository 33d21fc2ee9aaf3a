package util

import (
	"fmt"
	"math"
)

// AddUint64 adds a list of uint64s together, returning an error and a boolean indicator if the sum overflows uint64.
func AddUint64(ns ...uint64) (sum uint64, overflow bool, err error) {
	for _, n := range ns {
		if n > math.MaxUint64-sum {
			overflow = true
		}
		sum += n
	}
	if overflow {
		err = fmt.Errorf("uint64 sum overflow: %v", ns)
	}
	return
}
