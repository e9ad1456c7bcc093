package geom

import "math"

// Vec3 is a world-space position or offset. Z is up.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v-o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v*f
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v.X * f, v.Y * f, v.Z * f}
}

// Dot returns the dot product
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Len returns the vector length
func (v Vec3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// Len2D returns the length ignoring Z
func (v Vec3) Len2D() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Distance returns the distance between two points
func Distance(a, b Vec3) float64 {
	return b.Sub(a).Len()
}

// Distance2D returns the distance between two points on the ground plane
func Distance2D(a, b Vec3) float64 {
	return b.Sub(a).Len2D()
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Lerp interpolates linearly between a and b
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// NormalizeDegrees wraps an angle to (-180, 180]
func NormalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a > 180 {
		a -= 360
	} else if a <= -180 {
		a += 360
	}
	return a
}

// YawTo returns the yaw in degrees of the direction from -> to
func YawTo(from, to Vec3) float64 {
	d := to.Sub(from)
	return math.Atan2(d.Y, d.X) * 180 / math.Pi
}

// RotateYaw rotates v around the Z axis by yaw degrees
func RotateYaw(v Vec3, yaw float64) Vec3 {
	r := yaw * math.Pi / 180
	c, s := math.Cos(r), math.Sin(r)
	return Vec3{v.X*c - v.Y*s, v.X*s + v.Y*c, v.Z}
}

// Forward returns the unit vector on the ground plane for yaw degrees
func Forward(yaw float64) Vec3 {
	return RotateYaw(Vec3{X: 1}, yaw)
}

// SegmentCircleIntersect checks if a segment a-b on the ground plane crosses a circle at c with radius r.
// It returns the entry fraction along the segment.
func SegmentCircleIntersect(a, b, c Vec3, r float64) (float64, bool) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	fx := a.X - c.X
	fy := a.Y - c.Y
	qa := dx*dx + dy*dy
	if qa == 0 {
		return 0, fx*fx+fy*fy <= r*r
	}
	qb := 2 * (fx*dx + fy*dy)
	qc := fx*fx + fy*fy - r*r
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return 0, false
	}
	disc = math.Sqrt(disc)
	t1 := (-qb - disc) / (2 * qa)
	t2 := (-qb + disc) / (2 * qa)
	switch {
	case t1 >= 0 && t1 <= 1:
		return t1, true
	case t1 < 0 && t2 >= 0:
		// start point is inside
		return 0, true
	}
	return 0, false
}
