package id

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextOrderIDUnique(t *testing.T) {
	gen, err := NewGenerator(1)
	require.NoError(t, err)

	seen := make(map[int64]struct{})
	for i := 0; i < 10000; i++ {
		id := gen.NextOrderID()
		require.Positive(t, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestNewGeneratorRejectsBadNode(t *testing.T) {
	_, err := NewGenerator(-1)
	require.Error(t, err)
}
