package util

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

func Uint64ToBytes(i uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, i)
	return bytes
}

func BytesToUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// ParsePositiveUint64 parses a decimal integer greater than zero.
func ParsePositiveUint64(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	if n == 0 {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	return n, nil
}
