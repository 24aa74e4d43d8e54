package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := Defaults()
	assert.Equal(t, 6, o.MinResidueDistance)
	assert.Equal(t, 100000, o.MaxSequenceLength)
	assert.False(t, o.Verbose)
}

func TestWithOptions(t *testing.T) {
	o := Defaults()
	for _, opt := range []WithOption{
		WithMinResidueDistance(2),
		WithMaxSequenceLength(500),
		WithDataFolder("/data"),
		WithVerbose(),
	} {
		require.NoError(t, opt(o))
	}
	assert.Equal(t, 2, o.MinResidueDistance)
	assert.Equal(t, 500, o.MaxSequenceLength)
	assert.Equal(t, "/data", o.DataFolder)
	assert.True(t, o.Verbose)
}

func TestInvalidOptions(t *testing.T) {
	o := Defaults()
	assert.Error(t, WithMaxSequenceLength(0)(o))
	assert.Error(t, WithDataFolder("")(o))
}
