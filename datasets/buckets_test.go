package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRescaleForContactMaps(t *testing.T) {
	schedule, err := NewBucketSchedule([]int{500, 1500, 1000000000}, []int{400, 100, 64})
	require.NoError(t, err)

	rescaled := schedule.RescaleForContactMaps()
	// sqrt(400)/4 = 5; bucket 1 exceeds the batchable length; the final
	// bucket is always disabled
	assert.Equal(t, []int{5, 0, 0}, rescaled.BatchSizes)
	assert.Equal(t, schedule.Boundaries, rescaled.Boundaries)
	// the nominal schedule is left untouched
	assert.Equal(t, []int{400, 100, 64}, schedule.BatchSizes)
}

func TestRescaleClampsToOne(t *testing.T) {
	schedule, err := NewBucketSchedule([]int{100, 200, 1000000000}, []int{4, 9, 1024})
	require.NoError(t, err)

	rescaled := schedule.RescaleForContactMaps()
	assert.Equal(t, []int{1, 1, 0}, rescaled.BatchSizes)
	for _, size := range rescaled.BatchSizes {
		assert.GreaterOrEqual(t, size, 0)
	}
}

func TestRescaleDisablesExactlyOversizedAndLastBuckets(t *testing.T) {
	schedule, err := NewBucketSchedule([]int{1000, 1001, 2000, 1000000000}, []int{256, 256, 256, 256})
	require.NoError(t, err)

	rescaled := schedule.RescaleForContactMaps()
	// boundary 1000 is still batchable, 1001 and 2000 are not
	assert.Equal(t, []int{4, 0, 0, 0}, rescaled.BatchSizes)
}

func TestNewBucketScheduleValidation(t *testing.T) {
	_, err := NewBucketSchedule(nil, nil)
	assert.ErrorContains(t, err, "at least one boundary")

	_, err = NewBucketSchedule([]int{100, 200}, []int{32})
	assert.ErrorContains(t, err, "batch sizes")

	_, err = NewBucketSchedule([]int{100, 100}, []int{32, 32})
	assert.ErrorContains(t, err, "ascending")
}

func TestBucketFor(t *testing.T) {
	schedule, err := NewBucketSchedule([]int{100, 200, 300}, []int{8, 4, 2})
	require.NoError(t, err)

	assert.Equal(t, 0, schedule.BucketFor(1))
	assert.Equal(t, 0, schedule.BucketFor(100))
	assert.Equal(t, 1, schedule.BucketFor(101))
	assert.Equal(t, 2, schedule.BucketFor(300))
	assert.Equal(t, 2, schedule.BucketFor(5000))
}

func TestDefaultScheduleRescale(t *testing.T) {
	rescaled := DefaultSchedule().RescaleForContactMaps()
	last := len(rescaled.BatchSizes) - 1
	assert.Equal(t, 0, rescaled.BatchSizes[last])
	for i, size := range rescaled.BatchSizes {
		if i < last && rescaled.Boundaries[i] > 1000 {
			assert.Equal(t, 0, size)
		}
		assert.GreaterOrEqual(t, size, 0)
	}
}
