package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitmap(t *testing.T) {
	s := MakeBitmap(10)
	require.Len(t, s, 1)

	s.Set(3)
	s.Set(70)
	s.Set(5)
	s.Set(6)

	assert.Len(t, s, 2)

	assert.True(t, s.IsSet(3))
	assert.True(t, s.IsSet(70))
	assert.False(t, s.IsSet(4))
	assert.False(t, s.IsSet(200))

	assert.Equal(t, 4, s.Size())

	var l []int

	s.Range(func(i int) bool {
		l = append(l, i)
		return i < 6
	})

	assert.Equal(t, []int{3, 5, 6}, l)

	s.Clear(70)
	s.Clear(1000)

	assert.False(t, s.IsSet(70))
	assert.Equal(t, 3, s.Size())

	var n Bitmap

	assert.Equal(t, 0, n.Size())
	assert.False(t, n.IsSet(0))

	n.Clear(1)
	n.Set(130)

	assert.Len(t, n, 3)
	assert.Equal(t, 1, n.Size())
}

func TestBitmapTlogAppend(t *testing.T) {
	var n Bitmap

	assert.NotEmpty(t, n.TlogAppend(nil))

	s := MakeBitmap(4)
	s.Set(1)

	assert.Greater(t, len(s.TlogAppend(nil)), len(MakeBitmap(4).TlogAppend(nil)))
}
