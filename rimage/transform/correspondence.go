package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/reproject/rimage"
)

// A correspondence is the mapped 2D location, depth and validity of a
// single depth pixel projected into the color camera's frame. It is
// computed per source pixel and consumed immediately; depth is the
// z-coordinate in the color camera's frame, not the source depth.
type correspondence struct {
	point r2.Point
	depth float64
	valid bool
}

// computeCorrespondence maps a single depth pixel into the color camera's
// projection. A zero depth or a NaN table entry yields a zeroed, invalid
// correspondence with no error; that is normal data. A non-nil error means
// the projection primitives are unusable and the enclosing transform must
// abort.
func computeCorrespondence(idx int, depth uint16, sys DepthColorSystem, table *XYTable) (correspondence, error) {
	xf := table.X[idx]
	if depth == 0 || xf != xf { // NaN sentinel
		return correspondence{}, nil
	}

	z := float64(depth)
	depthPoint := r3.Vector{X: float64(xf) * z, Y: float64(table.Y[idx]) * z, Z: z}

	colorPoint, err := sys.DepthPointToColorPoint(depthPoint)
	if err != nil {
		return correspondence{}, err
	}
	pixel, valid, err := sys.ColorPointToPixel(colorPoint)
	if err != nil {
		return correspondence{}, err
	}
	return correspondence{point: pixel, depth: colorPoint.Z, valid: valid}, nil
}

// interpolateCorrespondences returns the midpoint of two correspondences.
// The result is valid only if both inputs are.
func interpolateCorrespondences(v1, v2 correspondence) correspondence {
	return correspondence{
		point: r2.Point{X: (v1.point.X + v2.point.X) * 0.5, Y: (v1.point.Y + v2.point.Y) * 0.5},
		depth: (v1.depth + v2.depth) * 0.5,
		valid: v1.valid && v2.valid,
	}
}

// A quad is the repaired 2x2 group of correspondences used as a
// rasterization unit, corners in clockwise order.
type quad struct {
	topLeft     correspondence
	topRight    correspondence
	bottomRight correspondence
	bottomLeft  correspondence
}

// Skip interpolation at a large depth discontinuity without disrupting
// slanted surfaces. The threshold ratio is estimated as follows:
// - angle between two pixels is: theta = 0.234375 degree (120 degree / 512) in binning resolution mode
// - distance between two pixels at same depth approximately is: A ~= sin(theta) * depth
// - distance between two pixels at highly slanted surface (e.g. alpha = 85 degree) is: B = A / cos(alpha)
// - skipInterpolationRatio ~= sin(theta) / cos(alpha)
// B is the threshold: skip interpolation if the depth difference in the
// quad is larger than B. This is a conservative estimate of the largest
// distance on a highly slanted surface at a given depth.
const skipInterpolationRatio = 0.04693441759

// repairQuad replaces invalid corners with existing or interpolated ones,
// keeping the winding order of the corners clockwise, and reports whether
// the repaired quad can be rasterized. A quad with two or more invalid
// corners cannot form a valid triangle pair; a quad spanning a depth
// discontinuity is rejected to avoid bridging it with interpolated
// geometry.
func repairQuad(topLeft, topRight, bottomRight, bottomLeft correspondence) (quad, bool) {
	q := quad{
		topLeft:     topLeft,
		topRight:    topRight,
		bottomRight: bottomRight,
		bottomLeft:  bottomLeft,
	}

	numInvalid := 0
	if !topLeft.valid {
		numInvalid++
		q.topLeft = interpolateCorrespondences(topRight, bottomLeft)
	}
	if !topRight.valid {
		numInvalid++
		q.topRight = bottomRight
		q.bottomRight = interpolateCorrespondences(bottomRight, bottomLeft)
	}
	if !bottomRight.valid {
		numInvalid++
		q.bottomRight = interpolateCorrespondences(topRight, bottomLeft)
	}
	if !bottomLeft.valid {
		numInvalid++
		q.bottomLeft = bottomRight
		q.bottomRight = interpolateCorrespondences(topRight, bottomRight)
	}
	if numInvalid >= 2 {
		return q, false
	}

	depthMin := math.Min(math.Min(q.topLeft.depth, q.topRight.depth), math.Min(q.bottomRight.depth, q.bottomLeft.depth))
	depthMax := math.Max(math.Max(q.topLeft.depth, q.topRight.depth), math.Max(q.bottomRight.depth, q.bottomLeft.depth))
	if depthMax-depthMin > skipInterpolationRatio*depthMin {
		return q, false
	}
	return q, true
}

// A boundingBox is the integer pixel rectangle enclosing a quad, clamped
// to the destination image bounds. The bottom right corner is exclusive.
type boundingBox struct {
	topLeft     [2]int
	bottomRight [2]int
}

// computeBoundingBox returns the clamped pixel bounding box of a quad's
// corner points in a width x height destination image.
func (q *quad) computeBoundingBox(width, height int) boundingBox {
	xMin := math.Min(math.Min(q.topLeft.point.X, q.topRight.point.X), math.Min(q.bottomRight.point.X, q.bottomLeft.point.X))
	yMin := math.Min(math.Min(q.topLeft.point.Y, q.topRight.point.Y), math.Min(q.bottomRight.point.Y, q.bottomLeft.point.Y))
	xMax := math.Max(math.Max(q.topLeft.point.X, q.topRight.point.X), math.Max(q.bottomRight.point.X, q.bottomLeft.point.X))
	yMax := math.Max(math.Max(q.topLeft.point.Y, q.topRight.point.Y), math.Max(q.bottomRight.point.Y, q.bottomLeft.point.Y))

	var box boundingBox
	box.topLeft[0] = max(int(math.Ceil(xMin)), 0)
	box.topLeft[1] = max(int(math.Ceil(yMin)), 0)
	box.bottomRight[0] = min(int(math.Ceil(xMax)), width)
	box.bottomRight[1] = min(int(math.Ceil(yMax)), height)
	return box
}

// areaFunction calculates the area of the parallelogram defined by vectors
// (ab) and (ac). The result is negative if vertex c is on the left side of
// vector (ab).
func areaFunction(a, b, c r2.Point) float64 {
	return (c.Y-a.Y)*(b.X-a.X) - (c.X-a.X)*(b.Y-a.Y)
}

// pointInsideTriangle checks whether point lies inside the triangle
// (topLeft, intermediate, bottomRight) and, if so, returns the
// barycentric-area-weighted interpolation of the corner depths. The
// top/left edge is inclusive while the bottom/right edge is exclusive so
// that quads sharing an edge do not both cover it.
func pointInsideTriangle(topLeft, intermediate, bottomRight correspondence,
	point r2.Point, areaIntermediate float64, counterClockwise bool,
) (float64, bool) {
	areaTopLeft := areaFunction(intermediate.point, topLeft.point, point)
	areaBottomRight := areaFunction(bottomRight.point, intermediate.point, point)

	// The signed areas are negated for the inside test when the winding is
	// clockwise; the interpolation below uses the original signs, where the
	// ratios cancel.
	testTopLeft, testBottomRight := areaTopLeft, areaBottomRight
	if !counterClockwise {
		testTopLeft, testBottomRight = -testTopLeft, -testBottomRight
	}
	if testTopLeft >= 0.0 && testBottomRight > 0.0 {
		sumWeights := areaTopLeft + areaIntermediate + areaBottomRight
		if sumWeights != 0.0 {
			sumWeights = 1.0 / sumWeights
		}
		// Each sub-triangle area weights the depth of the opposite corner.
		depth := (areaTopLeft*bottomRight.depth + areaIntermediate*intermediate.depth +
			areaBottomRight*topLeft.depth) * sumWeights
		return depth, true
	}
	return 0, false
}

// pointInsideQuad checks whether point lies inside the quad and, if so,
// returns the interpolated depth at that point. The quad is split into two
// triangles along the diagonal from top left to bottom right; the signed
// area against that diagonal selects which triangle contains the point and
// the winding to test it with.
func (q *quad) pointInsideQuad(point r2.Point) (float64, bool) {
	areaIntermediate := areaFunction(q.topLeft.point, q.bottomRight.point, point)
	counterClockwise := areaIntermediate >= 0.0

	intermediate := q.topRight
	if counterClockwise {
		intermediate = q.bottomLeft
	}
	return pointInsideTriangle(q.topLeft, intermediate, q.bottomRight, point, areaIntermediate, counterClockwise)
}

// rasterize writes the quad's interpolated depths into every covered pixel
// center inside box. A destination pixel is only overwritten when it is
// unwritten (0) or holds a larger depth, so the nearest surface wins when
// quads overlap.
func (q *quad) rasterize(box boundingBox, dst *rimage.DepthFrame) {
	for y := box.topLeft[1]; y < box.bottomRight[1]; y++ {
		row := dst.Row(y)
		for x := box.topLeft[0]; x < box.bottomRight[0]; x++ {
			point := r2.Point{X: float64(x), Y: float64(y)}
			interpolated, inside := q.pointInsideQuad(point)
			if !inside {
				continue
			}
			depth := uint16(interpolated + 0.5)
			if row[x] == 0 || depth < row[x] {
				row[x] = depth
			}
		}
	}
}
