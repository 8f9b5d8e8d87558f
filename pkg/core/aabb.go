package core

import "math"

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min Vec3 // Minimum corner
	Max Vec3 // Maximum corner
}

// NewAABB creates a new AABB from min and max points
func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// NewAABBFromPoints creates an AABB that bounds all given points
func NewAABBFromPoints(points ...Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}

	box := AABB{Min: points[0], Max: points[0]}
	for _, point := range points[1:] {
		box = box.Extend(point)
	}
	return box
}

// NewAABBFromCoords bounds a packed xyz coordinate array
func NewAABBFromCoords(coords []float32) AABB {
	if len(coords) < 3 {
		return AABB{}
	}

	first := NewVec3(float64(coords[0]), float64(coords[1]), float64(coords[2]))
	box := AABB{Min: first, Max: first}
	for i := 3; i+2 < len(coords); i += 3 {
		box = box.Extend(NewVec3(float64(coords[i]), float64(coords[i+1]), float64(coords[i+2])))
	}
	return box
}

// Extend returns the box grown to contain point
func (aabb AABB) Extend(point Vec3) AABB {
	return AABB{Min: aabb.Min.Min(point), Max: aabb.Max.Max(point)}
}

// Union returns the box containing both boxes
func (aabb AABB) Union(other AABB) AABB {
	return AABB{Min: aabb.Min.Min(other.Min), Max: aabb.Max.Max(other.Max)}
}

// Center returns the center point of the box
func (aabb AABB) Center() Vec3 {
	return aabb.Min.Add(aabb.Max).Multiply(0.5)
}

// Size returns the extent of the box along each axis
func (aabb AABB) Size() Vec3 {
	return aabb.Max.Subtract(aabb.Min)
}

// MaxExtent returns the largest side length
func (aabb AABB) MaxExtent() float64 {
	size := aabb.Size()
	return math.Max(size.X, math.Max(size.Y, size.Z))
}

// Intersect clips a ray against the box using the slab method and returns
// the parametric entry and exit distances
func (aabb AABB) Intersect(ray Ray, tMin, tMax float64) (float64, float64, bool) {
	for axis := 0; axis < 3; axis++ {
		lo := aabb.Min.Component(axis)
		hi := aabb.Max.Component(axis)
		origin := ray.Origin.Component(axis)
		direction := ray.Direction.Component(axis)

		// Handle parallel rays (direction near zero)
		if math.Abs(direction) < 1e-12 {
			if origin < lo || origin > hi {
				return 0, 0, false
			}
			continue
		}

		invDirection := 1.0 / direction
		t1 := (lo - origin) * invDirection
		t2 := (hi - origin) * invDirection
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMax < tMin {
			return 0, 0, false
		}
	}
	return tMin, tMax, true
}

// Xform is a uniform scale about a center, used to normalize object
// coordinates into the [-1,1] viewing volume
type Xform struct {
	Center Vec3
	Scale  float64
}

// IdentityXform returns the transform that leaves points unchanged
func IdentityXform() Xform {
	return Xform{Scale: 1}
}

// NormalizeXform fits box into a cube of side 2 centered at the origin
func NormalizeXform(box AABB) Xform {
	extent := box.MaxExtent()
	if extent <= 0 {
		return Xform{Center: box.Center(), Scale: 1}
	}
	return Xform{Center: box.Center(), Scale: 2 / extent}
}

// Apply maps an object-space point to world space
func (x Xform) Apply(p Vec3) Vec3 {
	return p.Subtract(x.Center).Multiply(x.Scale)
}

// Inverse maps a world-space point back to object space
func (x Xform) Inverse(p Vec3) Vec3 {
	return p.Multiply(1 / x.Scale).Add(x.Center)
}

// InverseRay maps a world-space ray to object space, keeping the ray
// parameter t identical in both spaces
func (x Xform) InverseRay(r Ray) Ray {
	return Ray{Origin: x.Inverse(r.Origin), Direction: r.Direction.Multiply(1 / x.Scale)}
}
