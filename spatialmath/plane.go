// Package spatialmath provides the coordinate-frame geometry used when
// preparing multi-camera driving data: plane fitting, ground-plane
// estimation in sensor space, the ground-aligned virtual frame, and
// composition of 4x4 homogeneous transform chains.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrDegeneratePlane is returned when a plane fit yields a zero normal and no
// ground estimate can be made from it.
var ErrDegeneratePlane = errors.New("degenerate plane: zero normal")

// groundPoints are three canonical points at ego height zero used to probe
// the ground plane. Any non-collinear triple on z=0 works; these match the
// unit spacing used when the calibration was produced.
var groundPoints = [3]r3.Vector{
	{X: 0, Y: 0, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: 1, Y: 1, Z: 0},
}

// PlaneFromPoints returns the coefficients [a b c d] of the plane
// ax+by+cz+d=0 through the three given points. The normal is the cross
// product of the two edge vectors out of p0. Collinear input yields a zero
// normal; use IsDegeneratePlane before trusting the result.
func PlaneFromPoints(p0, p1, p2 r3.Vector) [4]float64 {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	d := -n.Dot(p0)
	return [4]float64{n.X, n.Y, n.Z, d}
}

// PlaneNormal returns the (unnormalized) normal vector of a plane.
func PlaneNormal(plane [4]float64) r3.Vector {
	return r3.Vector{X: plane[0], Y: plane[1], Z: plane[2]}
}

// EvaluatePlane returns ax+by+cz+d for a point, zero iff the point is on the
// plane.
func EvaluatePlane(plane [4]float64, p r3.Vector) float64 {
	return plane[0]*p.X + plane[1]*p.Y + plane[2]*p.Z + plane[3]
}

// IsDegeneratePlane reports whether the plane has a (numerically) zero
// normal.
func IsDegeneratePlane(plane [4]float64) bool {
	return PlaneNormal(plane).Norm() < 1e-12
}

// EstimateGroundPlane maps the canonical ground points through ego2sensor
// and fits a plane to them in sensor space. The coefficients are negated so
// that evaluating the plane equation gives signed height above ground in the
// sensor's y-up convention.
func EstimateGroundPlane(ego2sensor mgl64.Mat4) ([4]float64, error) {
	var pts [3]r3.Vector
	for i, gp := range groundPoints {
		pts[i] = TransformPoint(ego2sensor, gp)
	}
	plane := PlaneFromPoints(pts[0], pts[1], pts[2])
	if IsDegeneratePlane(plane) {
		return [4]float64{}, errors.Wrap(ErrDegeneratePlane, "ground plane estimate")
	}
	for i := range plane {
		plane[i] = -plane[i]
	}
	return plane, nil
}

// ReferenceHeight returns the perpendicular distance of the fitted ground
// plane from the sensor origin, |d| / ||(a,b,c)||.
func ReferenceHeight(plane [4]float64) float64 {
	return math.Abs(plane[3]) / PlaneNormal(plane).Norm()
}
