package volren

import (
	"slices"

	"cogentcore.org/core/math32"
)

// LUTSize is the fixed resolution of the RGBA lookup texture derived
// from a transfer function.
const LUTSize = 4096

// ColorPoint is a color control point at an intensity value within the
// transfer function domain. Channels are in [0,1].
type ColorPoint struct {
	Pos     float32
	R, G, B float32
}

// OpacityPoint is an opacity control point. Alpha is in [0,1].
type OpacityPoint struct {
	Pos   float32
	Alpha float32
}

// TransferFunction maps intensity to color and opacity through ordered
// piecewise-linear control points over [DomainMin, DomainMax]. Shift
// slides the whole curve along the intensity axis before lookup.
//
// A transfer function is compared by full value equality (Equal), which
// is the cache key for its derived lookup texture: any mutation,
// including a Shift change, regenerates the texture.
type TransferFunction struct {
	ID        string
	DomainMin float32
	DomainMax float32
	Shift     float32
	Colors    []ColorPoint   // sorted by Pos
	Opacities []OpacityPoint // sorted by Pos
}

// Clone returns a deep copy, so the renderer can hold a stable snapshot
// while the caller keeps mutating its own instance.
func (tf *TransferFunction) Clone() *TransferFunction {
	c := *tf
	c.Colors = slices.Clone(tf.Colors)
	c.Opacities = slices.Clone(tf.Opacities)
	return &c
}

// Equal reports full value equality, the identity used by the
// transfer-texture cache.
func (tf *TransferFunction) Equal(o *TransferFunction) bool {
	if tf == nil || o == nil {
		return tf == o
	}
	return tf.ID == o.ID &&
		tf.DomainMin == o.DomainMin &&
		tf.DomainMax == o.DomainMax &&
		tf.Shift == o.Shift &&
		slices.Equal(tf.Colors, o.Colors) &&
		slices.Equal(tf.Opacities, o.Opacities)
}

// sortPoints orders the control points by position. Construction helpers
// call this so evaluation can assume sorted input.
func (tf *TransferFunction) sortPoints() {
	slices.SortStableFunc(tf.Colors, func(a, b ColorPoint) int {
		switch {
		case a.Pos < b.Pos:
			return -1
		case a.Pos > b.Pos:
			return 1
		}
		return 0
	})
	slices.SortStableFunc(tf.Opacities, func(a, b OpacityPoint) int {
		switch {
		case a.Pos < b.Pos:
			return -1
		case a.Pos > b.Pos:
			return 1
		}
		return 0
	})
}

// ColorAt evaluates the color curve at intensity v (after Shift),
// clamping outside the outermost control points.
func (tf *TransferFunction) ColorAt(v float32) (r, g, b float32) {
	v -= tf.Shift
	pts := tf.Colors
	if len(pts) == 0 {
		return 1, 1, 1
	}
	if v <= pts[0].Pos {
		return pts[0].R, pts[0].G, pts[0].B
	}
	last := pts[len(pts)-1]
	if v >= last.Pos {
		return last.R, last.G, last.B
	}
	for i := 1; i < len(pts); i++ {
		if v <= pts[i].Pos {
			a, bpt := pts[i-1], pts[i]
			t := float32(0)
			if bpt.Pos > a.Pos {
				t = (v - a.Pos) / (bpt.Pos - a.Pos)
			}
			return a.R + (bpt.R-a.R)*t, a.G + (bpt.G-a.G)*t, a.B + (bpt.B-a.B)*t
		}
	}
	return last.R, last.G, last.B
}

// OpacityAt evaluates the opacity curve at intensity v (after Shift).
func (tf *TransferFunction) OpacityAt(v float32) float32 {
	v -= tf.Shift
	pts := tf.Opacities
	if len(pts) == 0 {
		return 1
	}
	if v <= pts[0].Pos {
		return pts[0].Alpha
	}
	last := pts[len(pts)-1]
	if v >= last.Pos {
		return last.Alpha
	}
	for i := 1; i < len(pts); i++ {
		if v <= pts[i].Pos {
			a, b := pts[i-1], pts[i]
			t := float32(0)
			if b.Pos > a.Pos {
				t = (v - a.Pos) / (b.Pos - a.Pos)
			}
			return a.Alpha + (b.Alpha-a.Alpha)*t
		}
	}
	return last.Alpha
}

// SampleLUT samples the curves at n evenly spaced positions across the
// domain into an RGBA8 lookup table (4 bytes per sample). This is the
// payload of the 1-D transfer texture.
func (tf *TransferFunction) SampleLUT(n int) []byte {
	if n < 2 {
		n = 2
	}
	out := make([]byte, n*4)
	span := tf.DomainMax - tf.DomainMin
	for i := range n {
		v := tf.DomainMin + span*float32(i)/float32(n-1)
		r, g, b := tf.ColorAt(v)
		a := tf.OpacityAt(v)
		out[i*4+0] = toByte(r)
		out[i*4+1] = toByte(g)
		out[i*4+2] = toByte(b)
		out[i*4+3] = toByte(a)
	}
	return out
}

func toByte(v float32) byte {
	v = math32.Clamp(v, 0, 1)
	return byte(v*255 + 0.5)
}
