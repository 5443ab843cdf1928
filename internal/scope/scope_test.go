package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackFrameLocalVsChain(t *testing.T) {
	s := NewStack()
	s.Add("outer")
	s.Push()
	s.Add("inner")

	assert.True(t, s.Has("inner"), "innermost frame defines inner")
	assert.False(t, s.Has("outer"), "Has is frame-local")
	assert.True(t, s.IsDefined("outer"), "IsDefined walks the parent chain")
	assert.True(t, s.IsDefined("inner"))
	assert.False(t, s.IsDefined("missing"))
}

func TestStackPopIsLIFO(t *testing.T) {
	s := NewStack()
	s.Push()
	s.Add("a")
	s.Push()
	s.Add("b")
	require.Equal(t, 3, s.Depth())

	s.Pop()
	assert.False(t, s.IsDefined("b"))
	assert.True(t, s.IsDefined("a"))

	s.Pop()
	assert.False(t, s.IsDefined("a"))
}

func TestStackAddIdempotentPerFrame(t *testing.T) {
	s := NewStack()
	s.Add("x")
	s.Add("x")
	assert.True(t, s.Has("x"))
	s.Pop()
	assert.False(t, s.IsDefined("x"), "one pop drops the frame regardless of duplicate adds")
}

func TestNamesSnapshotIsIndependent(t *testing.T) {
	n := NewNames()
	n.Add("a")
	snap := n.Snapshot()
	n.Add("b")

	assert.True(t, n.Has("b"))
	assert.False(t, snap.Has("b"))
	assert.True(t, snap.Has("a"))

	n.Remove("a")
	assert.False(t, n.Has("a"))
	assert.True(t, snap.Has("a"))
}

func TestNamesSorted(t *testing.T) {
	n := NewNames()
	n.Add("zeta")
	n.Add("alpha")
	n.Add("mid")
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, n.Sorted())
}
