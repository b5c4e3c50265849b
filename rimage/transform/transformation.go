package transform

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/reproject/rimage"
)

// A Transformation bundles a calibrated camera pair with its precomputed
// depth unprojection table and a logger, and exposes the reprojection
// transforms as methods. It holds no mutable state: the same Transformation
// may be used for many frames, but a single call is not meant to be shared
// across goroutines with the same destination buffer.
type Transformation struct {
	sys        DepthColorSystem
	depthTable *XYTable
	logger     golog.Logger
}

// NewTransformation precomputes the depth camera's unprojection table for
// calib and returns a handle exposing the transforms.
func NewTransformation(calib *DepthColorCalibration, logger golog.Logger) (*Transformation, error) {
	if logger == nil {
		return nil, errors.New("logger is nil")
	}
	table, err := NewDepthXYTable(calib)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create transformation")
	}
	return &Transformation{sys: calib, depthTable: table, logger: logger}, nil
}

// NewTransformationWithTable wraps an externally built system and table,
// e.g. for a camera model not expressible as a DepthColorCalibration. The
// table must match the system's depth resolution.
func NewTransformationWithTable(sys DepthColorSystem, table *XYTable, logger golog.Logger) (*Transformation, error) {
	if sys == nil {
		return nil, errors.New("calibration is nil")
	}
	if logger == nil {
		return nil, errors.New("logger is nil")
	}
	if err := validateTable(sys, table, logger); err != nil {
		return nil, err
	}
	return &Transformation{sys: sys, depthTable: table, logger: logger}, nil
}

// DepthTable returns the precomputed depth camera unprojection table.
func (t *Transformation) DepthTable() *XYTable {
	return t.depthTable
}

// DepthFrameToColorFrame reprojects a depth frame into the color camera's
// projection. See the package-level function for buffer requirements.
func (t *Transformation) DepthFrameToColorFrame(depth, dst *rimage.DepthFrame) error {
	return DepthFrameToColorFrame(t.sys, t.depthTable, depth, dst, t.logger)
}

// ColorFrameToDepthFrame reprojects a color frame into the depth camera's
// projection. See the package-level function for buffer requirements.
func (t *Transformation) ColorFrameToDepthFrame(depth *rimage.DepthFrame, color, dst *rimage.ColorFrame) error {
	return ColorFrameToDepthFrame(t.sys, t.depthTable, depth, color, dst, t.logger)
}

// DepthFrameToPointFrame converts a depth frame into a point frame of
// int16 (x, y, z) triples. See the package-level function for buffer
// requirements.
func (t *Transformation) DepthFrameToPointFrame(depth *rimage.DepthFrame, dst *rimage.PointFrame) error {
	return DepthFrameToPointFrame(t.depthTable, depth, dst, t.logger)
}
