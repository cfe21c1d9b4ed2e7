package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeLayout(t *testing.T) {
	l := MakeLayout("NCHW4c")
	assert.Equal(t, "NCHW4c", l.Name())
	assert.Equal(t, 5, l.Rank())
	assert.Equal(t, LayoutAxis{Name: 'C'}, l.Axis(1))
	assert.Equal(t, LayoutAxis{Name: 'c', Factor: 4}, l.Axis(4))
	assert.True(t, l.Axis(4).IsSubAxis())
	assert.Equal(t, byte('C'), l.Axis(4).Primal())
	assert.Equal(t, "4c", l.Axis(4).String())

	assert.Equal(t, 1, l.IndexOf(LayoutAxis{Name: 'C'}))
	assert.Equal(t, 4, l.IndexOf(LayoutAxis{Name: 'c', Factor: 4}))
	assert.Equal(t, -1, l.IndexOf(LayoutAxis{Name: 'D'}))
}

func TestMakeLayoutMalformed(t *testing.T) {
	require.Panics(t, func() { MakeLayout("") })
	require.Panics(t, func() { MakeLayout("NCHWc") })  // sub-axis without factor
	require.Panics(t, func() { MakeLayout("NCHW4C") }) // factor on a primal axis
	require.Panics(t, func() { MakeLayout("NCHWN") })  // repeated axis
	require.Panics(t, func() { MakeLayout("NHW4c") })  // sub-axis without primal
	require.Panics(t, func() { MakeLayout("NCHW4") })  // trailing factor
	require.Panics(t, func() { MakeLayout("NC_HW") })  // invalid character
}

func TestMakeLayoutFromAxes(t *testing.T) {
	src := MakeLayout("NCHW4c")
	perm := []LayoutAxis{src.Axis(0), src.Axis(2), src.Axis(3), src.Axis(1), src.Axis(4)}
	l := MakeLayoutFromAxes(perm)
	assert.Equal(t, "NHWC4c", l.Name())
	assert.True(t, l.Equal(MakeLayout("NHWC4c")))
	assert.False(t, l.Equal(src))
}
