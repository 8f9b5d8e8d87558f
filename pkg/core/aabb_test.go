package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAABB_FromCoords(t *testing.T) {
	coords := []float32{0, 0, 0, 2, -1, 3, 1, 5, -2}
	box := NewAABBFromCoords(coords)

	assert.Equal(t, NewVec3(0, -1, -2), box.Min)
	assert.Equal(t, NewVec3(2, 5, 3), box.Max)
	assert.Equal(t, 6.0, box.MaxExtent())
}

func TestAABB_Intersect(t *testing.T) {
	box := NewAABB(NewVec3(-1, -1, -1), NewVec3(1, 1, 1))

	ray := NewRay(NewVec3(0, 0, 5), NewVec3(0, 0, -1))
	t0, t1, ok := box.Intersect(ray, 0, 100)
	assert.True(t, ok)
	assert.InDelta(t, 4.0, t0, 1e-12)
	assert.InDelta(t, 6.0, t1, 1e-12)

	miss := NewRay(NewVec3(3, 0, 5), NewVec3(0, 0, -1))
	_, _, ok = box.Intersect(miss, 0, 100)
	assert.False(t, ok)
}

func TestXform_RoundTrip(t *testing.T) {
	box := NewAABB(NewVec3(0, 0, 0), NewVec3(10, 4, 2))
	xf := NormalizeXform(box)

	assert.InDelta(t, 0.2, xf.Scale, 1e-12)
	world := xf.Apply(NewVec3(10, 4, 2))
	assert.InDelta(t, 1.0, world.X, 1e-12)

	back := xf.Inverse(world)
	assert.InDelta(t, 10.0, back.X, 1e-12)
	assert.InDelta(t, 4.0, back.Y, 1e-12)
	assert.InDelta(t, 2.0, back.Z, 1e-12)
}

func TestXform_InverseRayKeepsParameter(t *testing.T) {
	xf := Xform{Center: NewVec3(5, 5, 5), Scale: 0.5}
	ray := NewRay(NewVec3(0, 0, 3), NewVec3(0, 0, -1))

	objRay := xf.InverseRay(ray)
	for _, tt := range []float64{0, 1, 2.5} {
		expected := xf.Inverse(ray.At(tt))
		got := objRay.At(tt)
		assert.InDelta(t, expected.Z, got.Z, 1e-12)
	}
}
