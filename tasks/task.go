package tasks

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Task is the interface every benchmark task implements. A task knows where
// its data files live, and how to turn a batch of deserialized records plus
// externally produced predictions into a loss and a set of named metrics.
type Task interface {
	Name() string
	KeyMetric() string
	TrainFiles(dataFolder string) ([]string, error)
	ValidFiles(dataFolder string) ([]string, error)
	LossAndMetrics(inputs *Batch, predictions *tensor.Dense) (float32, map[string]float32, error)
}

// Batch is a group of deserialized protein records padded to a common length.
type Batch struct {
	// IDs are the record identifiers, used to pair records with externally
	// stored predictions.
	IDs []string
	// Primary holds residue identities, int32 with shape (B, L). Padding
	// positions are zero.
	Primary *tensor.Dense
	// ProteinLength is the true (unpadded) length of each example.
	ProteinLength []int
	// ValidMask is true for non-padding positions, bool with shape (B, L).
	ValidMask *tensor.Dense
	// ContactMap holds binary contact labels, float32 with shape (B, L, L).
	ContactMap *tensor.Dense
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.ProteinLength)
}

// PaddedLength returns the common padded sequence length L.
func (b *Batch) PaddedLength() int {
	if b.ValidMask == nil {
		return 0
	}
	return b.ValidMask.Shape()[1]
}

// Validate asserts that all batch tensors agree on shape and dtype. Malformed
// batches are a programming error upstream and must fail loudly rather than
// broadcast silently.
func (b *Batch) Validate() error {
	if b.ValidMask == nil || b.ContactMap == nil {
		return fmt.Errorf("batch requires valid mask and contact map tensors")
	}
	maskShape := b.ValidMask.Shape()
	if len(maskShape) != 2 {
		return fmt.Errorf("valid mask must have shape (B, L), got %v", maskShape)
	}
	size, length := maskShape[0], maskShape[1]
	if size != len(b.ProteinLength) {
		return fmt.Errorf("valid mask batch dimension %d does not match %d protein lengths", size, len(b.ProteinLength))
	}
	if b.ValidMask.Dtype() != tensor.Bool {
		return fmt.Errorf("valid mask must be a bool tensor, got %v", b.ValidMask.Dtype())
	}
	labelShape := b.ContactMap.Shape()
	if len(labelShape) != 3 || labelShape[0] != size || labelShape[1] != length || labelShape[2] != length {
		return fmt.Errorf("contact map must have shape (%d, %d, %d), got %v", size, length, length, labelShape)
	}
	if b.ContactMap.Dtype() != tensor.Float32 {
		return fmt.Errorf("contact map must be a float32 tensor, got %v", b.ContactMap.Dtype())
	}
	if b.Primary != nil {
		primaryShape := b.Primary.Shape()
		if len(primaryShape) != 2 || primaryShape[0] != size || primaryShape[1] != length {
			return fmt.Errorf("primary must have shape (%d, %d), got %v", size, length, primaryShape)
		}
	}
	for i, n := range b.ProteinLength {
		if n > length {
			return fmt.Errorf("example %d has protein length %d exceeding padded length %d", i, n, length)
		}
	}
	return nil
}
