package ir

import (
	"strconv"
	"strings"

	. "github.com/gomlx/exceptions"
)

// LayoutAxis is one axis of a Layout: an upper-case letter names a primal axis
// (e.g. 'C' for channels), a lower-case letter a sub-axis split off its primal
// axis with a fixed Factor (e.g. "4c" packs channels in groups of 4).
type LayoutAxis struct {
	Name   byte
	Factor int // split size for sub-axes (lower-case), 0 for primal axes.
}

// IsSubAxis returns whether this is a sub-axis (packed split of a primal axis).
func (a LayoutAxis) IsSubAxis() bool { return a.Factor > 0 }

// Primal returns the upper-case primal letter this axis belongs to.
func (a LayoutAxis) Primal() byte {
	if a.IsSubAxis() {
		return a.Name - 'a' + 'A'
	}
	return a.Name
}

// String implements fmt.Stringer.
func (a LayoutAxis) String() string {
	if a.IsSubAxis() {
		return strconv.Itoa(a.Factor) + string(a.Name)
	}
	return string(a.Name)
}

// Layout is an ordered sequence of axis labels describing the semantics of each
// tensor axis. Its number of axes always equals the rank of the tensor it
// describes, e.g. "NCHW" for rank 4 or "NCHW4c" for the rank-5 channel-packed
// variant.
//
// Layouts are immutable once built.
type Layout struct {
	name string
	axes []LayoutAxis
}

// MakeLayout parses a layout name like "NHWC" or "NCHW4c". It panics on a
// malformed name: a lower-case sub-axis without a factor, a repeated label, or
// a sub-axis without its primal axis.
func MakeLayout(name string) Layout {
	if name == "" {
		Panicf("MakeLayout(): empty layout name")
	}
	l := Layout{name: name}
	factor := 0
	for ii := 0; ii < len(name); ii++ {
		c := name[ii]
		switch {
		case c >= '0' && c <= '9':
			factor = factor*10 + int(c-'0')
		case c >= 'A' && c <= 'Z':
			if factor != 0 {
				Panicf("MakeLayout(%q): primal axis %q cannot have a split factor", name, string(c))
			}
			l.axes = append(l.axes, LayoutAxis{Name: c})
		case c >= 'a' && c <= 'z':
			if factor <= 0 {
				Panicf("MakeLayout(%q): sub-axis %q requires a positive split factor", name, string(c))
			}
			l.axes = append(l.axes, LayoutAxis{Name: c, Factor: factor})
			factor = 0
		default:
			Panicf("MakeLayout(%q): invalid character %q", name, string(c))
		}
	}
	if factor != 0 {
		Panicf("MakeLayout(%q): trailing split factor", name)
	}
	seen := make(map[byte]bool, len(l.axes))
	for _, axis := range l.axes {
		if seen[axis.Name] {
			Panicf("MakeLayout(%q): repeated axis %q", name, string(axis.Name))
		}
		seen[axis.Name] = true
	}
	for _, axis := range l.axes {
		if axis.IsSubAxis() && !seen[axis.Primal()] {
			Panicf("MakeLayout(%q): sub-axis %q without primal axis %q",
				name, string(axis.Name), string(axis.Primal()))
		}
	}
	return l
}

// MakeLayoutFromAxes builds a Layout from an explicit axis sequence, typically
// the result of permuting another layout's axes.
func MakeLayoutFromAxes(axes []LayoutAxis) Layout {
	var b strings.Builder
	for _, axis := range axes {
		b.WriteString(axis.String())
	}
	return MakeLayout(b.String())
}

// Name returns the layout name, e.g. "NCHW4c".
func (l Layout) Name() string { return l.name }

// Rank returns the number of axes of the layout.
func (l Layout) Rank() int { return len(l.axes) }

// Axis returns the ii-th axis label.
func (l Layout) Axis(ii int) LayoutAxis { return l.axes[ii] }

// Axes returns the axis labels in order. The returned slice must not be modified.
func (l Layout) Axes() []LayoutAxis { return l.axes }

// IndexOf returns the position of the given axis label, or -1 if absent.
func (l Layout) IndexOf(axis LayoutAxis) int {
	for ii, a := range l.axes {
		if a.Name == axis.Name {
			return ii
		}
	}
	return -1
}

// Equal compares two layouts by name.
func (l Layout) Equal(l2 Layout) bool { return l.name == l2.name }

// String implements fmt.Stringer.
func (l Layout) String() string { return l.name }
