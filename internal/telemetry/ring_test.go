package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	_, ok := r.Last()
	assert.False(t, ok)

	assert.False(t, r.Push(1))
	assert.False(t, r.Push(2))
	assert.Equal(t, []int{1, 2}, r.Items())

	assert.False(t, r.Push(3))
	assert.True(t, r.Push(4))
	assert.Equal(t, []int{2, 3, 4}, r.Items())

	assert.Equal(t, 2, r.PushAll([]int{5, 6}))
	assert.Equal(t, []int{4, 5, 6}, r.Items())
	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, 6, last)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())

	r.Clear()
	assert.Empty(t, r.Items())
	r.Push(7)
	assert.Equal(t, []int{7}, r.Items())
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := NewRing[string](0)
	r.Push("a")
	r.Push("b")
	assert.Equal(t, []string{"b"}, r.Items())
}
