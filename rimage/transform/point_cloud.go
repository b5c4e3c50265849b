package transform

import (
	"math"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/reproject/rimage"
)

// DepthFrameToPointFrame converts a depth frame into a point frame of
// (x, y, z) int16 millimeter triples using a precomputed unprojection
// table of matching resolution. dst must have the table's resolution with a
// 6-byte stride; a mismatched dst returns an error wrapping
// ErrBufferTooSmall so the caller can resize and retry. Pixels with a NaN
// table entry produce a zeroed triple, mirroring the zero-depth policy of
// the reprojection transforms.
func DepthFrameToPointFrame(
	table *XYTable,
	depth *rimage.DepthFrame,
	dst *rimage.PointFrame,
	logger golog.Logger,
) error {
	if err := validateDepthToPoints(table, depth, dst, logger); err != nil {
		return err
	}
	n := table.Width * table.Height
	depthToPoints(table, depth.Pix()[:n], dst.Points()[:3*n])
	return nil
}

func validateDepthToPoints(table *XYTable, depth *rimage.DepthFrame, dst *rimage.PointFrame, logger golog.Logger) error {
	if table == nil {
		logger.Error("depth camera xy table is nil")
		return errors.New("depth camera xy table is nil")
	}
	if dst == nil {
		logger.Error("point frame is nil")
		return errors.New("point frame is nil")
	}
	expected := expectedPointDescriptor(table)
	if dst.Bytes() == nil {
		logger.Error("point frame buffer is nil")
		return errors.Wrap(ErrBufferTooSmall, "point frame buffer is nil")
	}
	if !dst.Descriptor().Equals(expected) {
		err := descriptorMismatchError("point frame", expected, dst.Descriptor(), logger)
		return errors.Wrap(ErrBufferTooSmall, err.Error())
	}
	if depth == nil || depth.Bytes() == nil {
		logger.Error("depth frame is nil")
		return errors.New("depth frame is nil")
	}
	expectedDepth := rimage.NewDescriptor(table.Width, table.Height, 2)
	if !depth.Descriptor().Equals(expectedDepth) {
		return descriptorMismatchError("depth frame", expectedDepth, depth.Descriptor(), logger)
	}
	return nil
}

// pointBatch is how many pixels each iteration of the bulk loop handles.
const pointBatch = 8

// depthToPoints unprojects depth samples into interleaved (x, y, z) int16
// triples, pointBatch pixels at a time through portable float32 vectors.
// The products are computed in float32 so the vector and scalar paths are
// bit-identical; a NaN table factor propagates through the multiply and
// zeroes the whole triple.
func depthToPoints(table *XYTable, depth []uint16, out []int16) {
	var depthF, xs, ys [pointBatch]float32

	n := len(depth)
	base := 0
	for ; base+pointBatch <= n; base += pointBatch {
		for k := 0; k < pointBatch; k++ {
			depthF[k] = float32(depth[base+k])
		}
		lanes := hwy.MaxLanes[float32]()
		for off := 0; off < pointBatch; off += lanes {
			vd := hwy.Load(depthF[off:])
			vx := hwy.Mul(vd, hwy.Load(table.X[base+off:base+pointBatch]))
			vy := hwy.Mul(vd, hwy.Load(table.Y[base+off:base+pointBatch]))
			hwy.Store(vx, xs[off:])
			hwy.Store(vy, ys[off:])
		}
		for k := 0; k < pointBatch; k++ {
			storePoint(out[3*(base+k):], xs[k], ys[k], depth[base+k])
		}
	}
	depthToPointsScalar(table, depth, out, base)
}

// depthToPointsScalar is the scalar reference path, used for the tail of
// the bulk loop and for equivalence testing, starting at pixel from.
func depthToPointsScalar(table *XYTable, depth []uint16, out []int16, from int) {
	for i := from; i < len(depth); i++ {
		x := float32(depth[i]) * table.X[i]
		y := float32(depth[i]) * table.Y[i]
		storePoint(out[3*i:], x, y, depth[i])
	}
}

// storePoint writes one (x, y, z) triple, zeroed when the unprojection
// produced NaN, each coordinate rounded half to even and saturated into
// int16 range.
func storePoint(out []int16, x, y float32, depth uint16) {
	if x != x { // NaN: the pixel's ray is undefined
		out[0], out[1], out[2] = 0, 0, 0
		return
	}
	out[0] = roundSatInt16(x)
	out[1] = roundSatInt16(y)
	out[2] = satInt16(int32(depth))
}

func roundSatInt16(v float32) int16 {
	r := math.RoundToEven(float64(v))
	if r >= math.MaxInt16 {
		return math.MaxInt16
	}
	if r <= math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}

func satInt16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
