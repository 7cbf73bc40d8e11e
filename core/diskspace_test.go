package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSufficientSpaceBoundary(t *testing.T) {
	// 1000 bytes required -> boundary at exactly 1100 free.
	assert.False(t, sufficientSpace(1099, 1000))
	assert.False(t, sufficientSpace(1100, 1000))
	assert.True(t, sufficientSpace(1101, 1000))
}

func TestSufficientSpaceZeroRequired(t *testing.T) {
	assert.True(t, sufficientSpace(1, 0))
	assert.False(t, sufficientSpace(0, 0))
}

func TestDiskFree(t *testing.T) {
	free, err := diskFree(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, int64(0))
}
