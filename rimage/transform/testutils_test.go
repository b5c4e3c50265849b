package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// alignedCalibration returns a calibration whose color camera sees exactly
// the depth camera's image: same intrinsics model and identity extrinsics,
// so a depth pixel (u, v) maps to a color pixel offset by half the
// resolution difference. The power-of-two focal length keeps every table
// factor exact in float32 and every projection round trip exact, so tests
// can assert pixel coverage without floating point slack.
func alignedCalibration(depthW, depthH, colorW, colorH int) *DepthColorCalibration {
	return &DepthColorCalibration{
		DepthCamera: PinholeCameraIntrinsics{
			Width: depthW, Height: depthH,
			Fx: 512, Fy: 512,
			Ppx: float64(depthW) / 2, Ppy: float64(depthH) / 2,
		},
		ColorCamera: PinholeCameraIntrinsics{
			Width: colorW, Height: colorH,
			Fx: 512, Fy: 512,
			Ppx: float64(colorW) / 2, Ppy: float64(colorH) / 2,
		},
		DepthToColor: NewIdentityExtrinsics(),
	}
}

// brokenProjectionSystem reports a fatal model error from the 3D to 2D
// primitive, for exercising the abort path of the transforms.
type brokenProjectionSystem struct {
	*DepthColorCalibration
}

func (b *brokenProjectionSystem) ColorPointToPixel(r3.Vector) (r2.Point, bool, error) {
	return r2.Point{}, false, errors.New("projection model failure")
}

// rejectingDistorter fails undistortion for pixels whose normalized radius
// exceeds maxRadius, producing NaN unprojection table entries.
type rejectingDistorter struct {
	maxRadius float64
}

func (d *rejectingDistorter) ModelType() DistortionType { return DistortionType("test_rejecting") }

func (d *rejectingDistorter) CheckValid() error { return nil }

func (d *rejectingDistorter) Parameters() []float64 { return []float64{d.maxRadius} }

func (d *rejectingDistorter) Undistort(x, y float64) (float64, float64, bool) {
	if x*x+y*y > d.maxRadius*d.maxRadius {
		return 0, 0, false
	}
	return x, y, true
}

func validCorrespondence(x, y, depth float64) correspondence {
	return correspondence{point: r2.Point{X: x, Y: y}, depth: depth, valid: true}
}

func invalidCorrespondence() correspondence {
	return correspondence{}
}
