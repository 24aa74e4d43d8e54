package datasets

import (
	"fmt"
	"math"
)

// maxBatchableLength is the longest sequence, in residues, for which pairwise
// contact tensors are still batched. Buckets above this are disabled rather
// than resized. Do not change this threshold without revisiting the memory
// profile of L*L batches.
const maxBatchableLength = 1000

// BucketSchedule pairs ascending length boundaries with per-bucket batch
// sizes. An example of length n belongs to the first bucket whose boundary is
// >= n; the final boundary acts as a catch-all. A batch size of 0 disables a
// bucket entirely.
type BucketSchedule struct {
	Boundaries []int
	BatchSizes []int
}

// NewBucketSchedule validates and copies a schedule. Boundaries and batch
// sizes must be non-empty and of equal length; this is checked at
// construction so misconfiguration fails before any data is read.
func NewBucketSchedule(boundaries []int, batchSizes []int) (*BucketSchedule, error) {
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("bucket schedule requires at least one boundary")
	}
	if len(boundaries) != len(batchSizes) {
		return nil, fmt.Errorf("bucket schedule has %d boundaries but %d batch sizes", len(boundaries), len(batchSizes))
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] <= boundaries[i-1] {
			return nil, fmt.Errorf("bucket boundaries must be strictly ascending, got %d after %d", boundaries[i], boundaries[i-1])
		}
	}
	return &BucketSchedule{
		Boundaries: append([]int(nil), boundaries...),
		BatchSizes: append([]int(nil), batchSizes...),
	}, nil
}

// DefaultSchedule returns the nominal length buckets used for training runs.
// The batch sizes here are nominal capacities; tasks with pairwise outputs
// rescale them before use.
func DefaultSchedule() *BucketSchedule {
	return &BucketSchedule{
		Boundaries: []int{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1300, 2000, 1000000000},
		BatchSizes: []int{1024, 512, 352, 256, 208, 176, 144, 128, 112, 96, 80, 48, 16},
	}
}

// RescaleForContactMaps shrinks nominal batch sizes to offset the quadratic
// memory cost of pairwise contact tensors: each becomes
// floor(sqrt(nominal)/4), clamped to at least 1. Buckets whose boundary
// exceeds maxBatchableLength are disabled, and the final catch-all bucket is
// always disabled, so very long sequences never appear in contact-map batches.
func (s *BucketSchedule) RescaleForContactMaps() *BucketSchedule {
	scaled := make([]int, len(s.BatchSizes))
	for i, nominal := range s.BatchSizes {
		size := int(math.Sqrt(float64(nominal)) / 4)
		if size <= 0 {
			size = 1
		}
		scaled[i] = size
	}
	last := len(scaled) - 1
	for i := 0; i < last; i++ {
		if s.Boundaries[i] > maxBatchableLength {
			scaled[i] = 0
		}
	}
	scaled[last] = 0
	return &BucketSchedule{
		Boundaries: append([]int(nil), s.Boundaries...),
		BatchSizes: scaled,
	}
}

// BucketFor returns the index of the bucket an example of the given length
// falls into. Lengths beyond every boundary land in the final bucket.
func (s *BucketSchedule) BucketFor(length int) int {
	for i, boundary := range s.Boundaries {
		if length <= boundary {
			return i
		}
	}
	return len(s.Boundaries) - 1
}
