package tasks

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/atlas-bioml/protbench/options"
	"github.com/atlas-bioml/protbench/util"
)

const (
	contactLabelName  = "contact_map"
	contactInputName  = "encoder_output"
	contactOutputName = "contact_prob"

	contactKeyMetric = "ACC"

	// maskPenalty pushes masked pairs out of top-k range when ranking
	// predicted contacts.
	maskPenalty = 1000.0

	// accuracyEpsilon guards the precision denominator when a batch ranks
	// zero valid pairs.
	accuracyEpsilon = 1e-8
)

// ContactMapTask scores residue-residue contact predictions against true
// contact maps. The loss is a masked sigmoid cross-entropy over all residue
// pairs; the key metric is top-L/5 contact precision, the fraction of true
// contacts among the L/5 highest-confidence predicted pairs.
type ContactMapTask struct {
	labelName          string
	inputName          string
	outputName         string
	minResidueDistance int
}

// NewContactMapTask builds a contact map task. The minimum residue distance
// (default 6) excludes trivially close pairs along the chain from both loss
// and metric.
func NewContactMapTask(opts ...options.WithOption) (*ContactMapTask, error) {
	o := options.Defaults()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return &ContactMapTask{
		labelName:          contactLabelName,
		inputName:          contactInputName,
		outputName:         contactOutputName,
		minResidueDistance: o.MinResidueDistance,
	}, nil
}

func (t *ContactMapTask) Name() string {
	return "contactMap"
}

func (t *ContactMapTask) KeyMetric() string {
	return contactKeyMetric
}

// LabelName is the name of the label tensor consumed by this task.
func (t *ContactMapTask) LabelName() string {
	return t.labelName
}

// InputName is the name of the encoder output tensor the projection layer reads.
func (t *ContactMapTask) InputName() string {
	return t.inputName
}

// OutputName is the name of the contact logit tensor the projection layer produces.
func (t *ContactMapTask) OutputName() string {
	return t.outputName
}

// MinResidueDistance returns the configured minimum chain separation.
func (t *ContactMapTask) MinResidueDistance() int {
	return t.minResidueDistance
}

// TrainFiles locates the training shards under dataFolder. Missing files are
// a configuration error and are reported at setup time, not during training.
func (t *ContactMapTask) TrainFiles(dataFolder string) ([]string, error) {
	folder := util.PathJoinSafe(dataFolder, "proteinnet")
	pattern := "contact_map_train*.jsonl"
	files, err := util.MatchFiles(folder, pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no training files found matching %s", util.PathJoinSafe(folder, pattern))
	}
	return files, nil
}

// ValidFiles locates the single validation file under dataFolder.
func (t *ContactMapTask) ValidFiles(dataFolder string) ([]string, error) {
	validFile := util.PathJoinSafe(dataFolder, "proteinnet", "contact_map_valid.jsonl")
	exists, err := util.FileExists(validFile)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("validation file not found: %s", validFile)
	}
	return []string{validFile}, nil
}

// PairMask builds the boolean selector over all residue pairs: entry (i, j)
// is true iff positions i and j are both non-padding and |i-j| >= minDistance.
// validMask must be a bool tensor with shape (B, L); the result has shape
// (B, L, L). The mask is symmetric in i and j, and masks the diagonal whenever
// minDistance >= 1.
func PairMask(validMask *tensor.Dense, minDistance int) (*tensor.Dense, error) {
	shape := validMask.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("valid mask must have shape (B, L), got %v", shape)
	}
	valid, ok := validMask.Data().([]bool)
	if !ok {
		return nil, fmt.Errorf("valid mask must be a bool tensor, got %v", validMask.Dtype())
	}
	size, length := shape[0], shape[1]
	backing := make([]bool, size*length*length)
	for n := 0; n < size; n++ {
		row := valid[n*length : (n+1)*length]
		base := n * length * length
		for i := 0; i < length; i++ {
			if !row[i] {
				continue
			}
			for j := 0; j < length; j++ {
				if !row[j] {
					continue
				}
				distance := i - j
				if distance < 0 {
					distance = -distance
				}
				if distance >= minDistance {
					backing[base+i*length+j] = true
				}
			}
		}
	}
	return tensor.New(tensor.WithShape(size, length, length), tensor.WithBacking(backing)), nil
}

// LossAndMetrics computes the masked sigmoid cross-entropy loss and the
// top-L/5 contact precision for a batch. predictions must be a float32 tensor
// of raw contact logits with shape (B, L, L) matching the batch.
func (t *ContactMapTask) LossAndMetrics(inputs *Batch, predictions *tensor.Dense) (float32, map[string]float32, error) {
	if err := inputs.Validate(); err != nil {
		return 0, nil, err
	}
	if predictions == nil {
		return 0, nil, fmt.Errorf("predictions tensor is required")
	}
	size := inputs.Size()
	length := inputs.PaddedLength()
	predShape := predictions.Shape()
	if len(predShape) != 3 || predShape[0] != size || predShape[1] != length || predShape[2] != length {
		return 0, nil, fmt.Errorf("predictions must have shape (%d, %d, %d), got %v", size, length, length, predShape)
	}
	pred, ok := predictions.Data().([]float32)
	if !ok {
		return 0, nil, fmt.Errorf("predictions must be a float32 tensor, got %v", predictions.Dtype())
	}
	label := inputs.ContactMap.Data().([]float32)

	pairMask, err := PairMask(inputs.ValidMask, t.minResidueDistance)
	if err != nil {
		return 0, nil, err
	}

	// Mask weights in the prediction dtype. The pairwise structure is not
	// needed past this point, so everything is treated as flat (B, L*L).
	maskBool := pairMask.Data().([]bool)
	mask := make([]float32, len(maskBool))
	for i, m := range maskBool {
		if m {
			mask[i] = 1
		}
	}

	var lossSum, weightSum float32
	for i := range pred {
		if mask[i] == 0 {
			continue
		}
		lossSum += mask[i] * util.SigmoidCrossEntropy(label[i], pred[i])
		weightSum += mask[i]
	}
	var loss float32
	if weightSum > 0 {
		loss = lossSum / weightSum
	}

	// Top-L/5 precision: rank pairs per example by logit, with masked pairs
	// pushed to effectively negative infinity, and count true contacts among
	// the top maxProteinLength/5 candidates.
	maxLen := 0
	for _, n := range inputs.ProteinLength {
		if n > maxLen {
			maxLen = n
		}
	}
	k := maxLen / 5

	pairs := length * length
	scores := make([]float32, pairs)
	var hitSum, rankedWeight float32
	for n := 0; n < size; n++ {
		base := n * pairs
		for i := 0; i < pairs; i++ {
			scores[i] = pred[base+i] - maskPenalty*(1-mask[base+i])
		}
		for _, idx := range util.TopK(scores, k) {
			hitSum += label[base+idx] * mask[base+idx]
			rankedWeight += mask[base+idx]
		}
	}
	accuracy := hitSum / (rankedWeight + accuracyEpsilon)

	return loss, map[string]float32{contactKeyMetric: accuracy}, nil
}
