package geom

import (
	"math"
	"sort"
)

// ShapeKind tags the Shape variant
type ShapeKind uint8

const (
	ShapeSphere ShapeKind = iota
	ShapeBox
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	default:
		return "sphere"
	}
}

// Shape is the collision volume of an effect. Radius is used by spheres,
// Extent (half size) by boxes.
type Shape struct {
	Kind   ShapeKind
	Radius float64
	Extent Vec3
}

// Sphere returns a sphere shape
func Sphere(radius float64) Shape {
	return Shape{Kind: ShapeSphere, Radius: radius}
}

// Box returns an oriented box shape with the given half extents
func Box(extent Vec3) Shape {
	return Shape{Kind: ShapeBox, Extent: extent}
}

// Scaled returns the shape uniformly scaled by f
func (s Shape) Scaled(f float64) Shape {
	return Shape{Kind: s.Kind, Radius: s.Radius * f, Extent: s.Extent.Scale(f)}
}

// BoundingRadius returns the radius of a circle enclosing the shape on the ground plane
func (s Shape) BoundingRadius() float64 {
	if s.Kind == ShapeBox {
		return math.Sqrt(s.Extent.X*s.Extent.X + s.Extent.Y*s.Extent.Y)
	}
	return s.Radius
}

// Overlaps reports whether a circle (p, r) touches the shape placed at center with yaw degrees.
func (s Shape) Overlaps(center Vec3, yaw float64, p Vec3, r float64) bool {
	if s.Kind == ShapeBox {
		// Move p into box space, then clamp to the box.
		local := RotateYaw(p.Sub(center), -yaw)
		cx := Clamp(local.X, -s.Extent.X, s.Extent.X)
		cy := Clamp(local.Y, -s.Extent.Y, s.Extent.Y)
		dx, dy := local.X-cx, local.Y-cy
		return dx*dx+dy*dy <= r*r
	}
	rs := s.Radius + r
	d := p.Sub(center)
	return d.X*d.X+d.Y*d.Y <= rs*rs
}

// CurveKey is one point of a Curve
type CurveKey struct {
	T, V float64
}

// Curve is a piecewise-linear function. An empty curve evaluates to 1.
type Curve []CurveKey

// NewCurve returns a curve with keys sorted by T
func NewCurve(keys ...CurveKey) Curve {
	c := append(Curve(nil), keys...)
	sort.Slice(c, func(i, j int) bool { return c[i].T < c[j].T })
	return c
}

// Constant returns a curve that always evaluates to v
func Constant(v float64) Curve {
	return Curve{{T: 0, V: v}}
}

// Eval evaluates the curve at t, holding the end values outside the key range
func (c Curve) Eval(t float64) float64 {
	if len(c) == 0 {
		return 1
	}
	if t <= c[0].T {
		return c[0].V
	}
	last := c[len(c)-1]
	if t >= last.T {
		return last.V
	}
	for i := 1; i < len(c); i++ {
		if t <= c[i].T {
			a, b := c[i-1], c[i]
			if b.T == a.T {
				return b.V
			}
			return Lerp(a.V, b.V, (t-a.T)/(b.T-a.T))
		}
	}
	return last.V
}
