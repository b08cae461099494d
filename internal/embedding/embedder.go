// Package embedding holds helpers shared by the embedding clients.
package embedding

import (
	"fmt"
	"math"
)

// L2Normalize scales v to unit length in place. Zero vectors are left alone.
func L2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Batches calls fn for consecutive [lo, hi) windows of at most size items.
func Batches(n, size int, fn func(lo, hi int) error) error {
	if size <= 0 {
		size = n
	}
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		if err := fn(lo, hi); err != nil {
			return err
		}
	}
	return nil
}

// CheckCount verifies that a provider returned one vector per input.
func CheckCount(want int, vectors [][]float32) error {
	if len(vectors) != want {
		return fmt.Errorf("embedding: got %d vectors for %d texts", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("embedding: empty vector for text %d", i)
		}
	}
	return nil
}
