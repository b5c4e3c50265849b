package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestPinholeIntrinsicsCheckValid(t *testing.T) {
	goodIntrinsics := PinholeCameraIntrinsics{
		Width: 1280, Height: 720,
		Fx: 900.5, Fy: 900.6,
		Ppx: 648.9, Ppy: 367.3,
	}
	test.That(t, goodIntrinsics.CheckValid(), test.ShouldBeNil)

	var nilIntrinsics *PinholeCameraIntrinsics
	err := nilIntrinsics.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	badSize := goodIntrinsics
	badSize.Width = 0
	test.That(t, badSize.CheckValid(), test.ShouldNotBeNil)

	badFx := goodIntrinsics
	badFx.Fx = 0
	test.That(t, badFx.CheckValid(), test.ShouldNotBeNil)
}

func TestPinholeProjectionRoundTrip(t *testing.T) {
	intrinsics := PinholeCameraIntrinsics{
		Width: 1280, Height: 720,
		Fx: 900.5, Fy: 900.6,
		Ppx: 648.9, Ppy: 367.3,
	}
	x, y, z := intrinsics.PixelToPoint(100, 200, 2500)
	u, v := intrinsics.PointToPixel(x, y, z)
	test.That(t, u, test.ShouldAlmostEqual, 100, 1e-9)
	test.That(t, v, test.ShouldAlmostEqual, 200, 1e-9)

	// zero depth projects out of bounds
	u, v = intrinsics.PointToPixel(1, 1, 0)
	test.That(t, u, test.ShouldEqual, -1.0)
	test.That(t, v, test.ShouldEqual, -1.0)

	m := intrinsics.GetCameraMatrix()
	test.That(t, m.At(0, 0), test.ShouldEqual, 900.5)
	test.That(t, m.At(1, 1), test.ShouldEqual, 900.6)
	test.That(t, m.At(0, 2), test.ShouldEqual, 648.9)
	test.That(t, m.At(1, 2), test.ShouldEqual, 367.3)
	test.That(t, m.At(2, 2), test.ShouldEqual, 1.0)
}

func TestExtrinsics(t *testing.T) {
	_, err := NewExtrinsics(nil, r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewExtrinsics(mat.NewDense(2, 3, nil), r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)

	identity := NewIdentityExtrinsics()
	pt := identity.Transform(r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, pt, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})

	// 90 degree rotation around z plus a translation
	theta := math.Pi / 2
	rot := mat.NewDense(3, 3, []float64{
		math.Cos(theta), -math.Sin(theta), 0,
		math.Sin(theta), math.Cos(theta), 0,
		0, 0, 1,
	})
	ext, err := NewExtrinsics(rot, r3.Vector{X: 10, Y: 0, Z: -5})
	test.That(t, err, test.ShouldBeNil)
	pt = ext.Transform(r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, pt.X, test.ShouldAlmostEqual, 10, 1e-12)
	test.That(t, pt.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, pt.Z, test.ShouldAlmostEqual, -5, 1e-12)

	test.That(t, ext.Translation(), test.ShouldResemble, r3.Vector{X: 10, Y: 0, Z: -5})
	roundTrip := ext.RotationMatrix()
	test.That(t, mat.EqualApprox(roundTrip, rot, 1e-12), test.ShouldBeTrue)
}

func TestDepthColorCalibrationPrimitives(t *testing.T) {
	calib := alignedCalibration(640, 576, 640, 576)
	test.That(t, calib.CheckValid(), test.ShouldBeNil)

	w, h := calib.DepthResolution()
	test.That(t, w, test.ShouldEqual, 640)
	test.That(t, h, test.ShouldEqual, 576)

	colorPt, err := calib.DepthPointToColorPoint(r3.Vector{X: 7, Y: -2, Z: 1000})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, colorPt, test.ShouldResemble, r3.Vector{X: 7, Y: -2, Z: 1000})

	pixel, valid, err := calib.ColorPointToPixel(r3.Vector{X: 0, Y: 0, Z: 1000})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, valid, test.ShouldBeTrue)
	test.That(t, pixel.X, test.ShouldAlmostEqual, 320)
	test.That(t, pixel.Y, test.ShouldAlmostEqual, 288)

	// behind the camera is normal data, not an error
	_, valid, err = calib.ColorPointToPixel(r3.Vector{X: 0, Y: 0, Z: -1000})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, valid, test.ShouldBeFalse)
}

func TestCalibrationFromJSON(t *testing.T) {
	data := []byte(`{
		"depth_camera": {"width_px": 640, "height_px": 576, "fx": 502.8, "fy": 502.9, "ppx": 322.1, "ppy": 329.4},
		"color_camera": {"width_px": 1920, "height_px": 1080, "fx": 916.1, "fy": 915.9, "ppx": 959.2, "ppy": 549.7},
		"rotation": [1, 0, 0, 0, 1, 0, 0, 0, 1],
		"translation_mm": [-32.1, -2.0, 3.8],
		"distortion_type": "brown_conrady",
		"distortion_parameters": [0.1, -0.05, 0.001, 0.0004, -0.0002]
	}`)
	calib, err := NewDepthColorCalibrationFromJSON(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calib.DepthCamera.Width, test.ShouldEqual, 640)
	test.That(t, calib.ColorCamera.Height, test.ShouldEqual, 1080)
	test.That(t, calib.DepthToColor.Translation().X, test.ShouldEqual, -32.1)
	test.That(t, calib.DepthDistortion, test.ShouldNotBeNil)
	test.That(t, calib.DepthDistortion.ModelType(), test.ShouldEqual, BrownConradyDistortionType)

	_, err = NewDepthColorCalibrationFromJSON([]byte(`{"rotation": [1, 0]}`))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewDepthColorCalibrationFromJSON([]byte(`not json`))
	test.That(t, err, test.ShouldNotBeNil)
}
