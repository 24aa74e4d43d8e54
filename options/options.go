package options

import (
	"fmt"
)

// Options holds the static configuration for a benchmark task. It is built
// once at task construction and never mutated afterwards.
type Options struct {
	// MinResidueDistance is the minimum separation along the chain for a
	// residue pair to count toward the contact loss and metric. Pairs closer
	// than this are excluded as trivial local contacts.
	MinResidueDistance int
	// MaxSequenceLength is the longest sequence a dataset will accept.
	// Longer records are skipped.
	MaxSequenceLength int
	// DataFolder is the root folder under which task data files live.
	DataFolder string
	Verbose    bool
}

func Defaults() *Options {
	return &Options{
		MinResidueDistance: 6,
		MaxSequenceLength:  100000,
	}
}

// WithOption is the interface for all option functions.
type WithOption func(o *Options) error

// WithMinResidueDistance sets the minimum chain separation for scored residue
// pairs. A value <= 0 admits every pair including the diagonal.
func WithMinResidueDistance(distance int) WithOption {
	return func(o *Options) error {
		o.MinResidueDistance = distance
		return nil
	}
}

func WithMaxSequenceLength(length int) WithOption {
	return func(o *Options) error {
		if length <= 0 {
			return fmt.Errorf("max sequence length must be greater than 0")
		}
		o.MaxSequenceLength = length
		return nil
	}
}

func WithDataFolder(folder string) WithOption {
	return func(o *Options) error {
		if folder == "" {
			return fmt.Errorf("data folder is required")
		}
		o.DataFolder = folder
		return nil
	}
}

func WithVerbose() WithOption {
	return func(o *Options) error {
		o.Verbose = true
		return nil
	}
}
