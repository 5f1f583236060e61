package imagegen

import (
	"hash/fnv"
	"strconv"
)

// Seed maps (productID, imageType) to a stable non-negative seed so repeated
// generations of the same pair are reproducible.
func Seed(productID string, t ImageType) int {
	return SeedForAttempt(productID, t, 0)
}

// SeedForAttempt derives the seed for an intentional regeneration. Attempt 0
// equals Seed.
func SeedForAttempt(productID string, t ImageType, attempt int) int {
	h := fnv.New32a()
	h.Write([]byte(productID))
	h.Write([]byte{'|'})
	h.Write([]byte(t))
	if attempt > 0 {
		h.Write([]byte{'#'})
		h.Write([]byte(strconv.Itoa(attempt)))
	}
	return int(h.Sum32() & 0x7fffffff)
}
