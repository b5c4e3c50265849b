package transform

import (
	"testing"

	"go.viam.com/test"
)

func TestNewXYTable(t *testing.T) {
	_, err := NewXYTable(0, 10)
	test.That(t, err, test.ShouldNotBeNil)

	table, err := NewXYTable(4, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(table.X), test.ShouldEqual, 12)
	test.That(t, len(table.Y), test.ShouldEqual, 12)
}

func TestDepthXYTableFactors(t *testing.T) {
	calib := alignedCalibration(640, 576, 640, 576)
	table, err := NewDepthXYTable(calib)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, table.Width, test.ShouldEqual, 640)
	test.That(t, table.Height, test.ShouldEqual, 576)

	// pixel at the principal point unprojects straight ahead
	centerIdx := 288*640 + 320
	test.That(t, table.X[centerIdx], test.ShouldEqual, float32(0))
	test.That(t, table.Y[centerIdx], test.ShouldEqual, float32(0))

	// factors are (u - ppx) / fx and (v - ppy) / fy
	idx := 100*640 + 50
	test.That(t, table.X[idx], test.ShouldAlmostEqual, (50.0-320.0)/512.0, 1e-6)
	test.That(t, table.Y[idx], test.ShouldAlmostEqual, (100.0-288.0)/512.0, 1e-6)
}

func TestDepthXYTableNaNSentinel(t *testing.T) {
	calib := alignedCalibration(64, 64, 64, 64)
	calib.DepthDistortion = &rejectingDistorter{maxRadius: 0.04}
	table, err := NewDepthXYTable(calib)
	test.That(t, err, test.ShouldBeNil)

	center := 32*64 + 32
	test.That(t, table.X[center] == table.X[center], test.ShouldBeTrue)

	// a corner pixel's ray is outside the lens model
	test.That(t, table.X[0] != table.X[0], test.ShouldBeTrue)
	test.That(t, table.Y[0] != table.Y[0], test.ShouldBeTrue)
}

func TestDepthXYTableInvalidCalibration(t *testing.T) {
	calib := alignedCalibration(640, 576, 640, 576)
	calib.DepthCamera.Fx = 0
	_, err := NewDepthXYTable(calib)
	test.That(t, err, test.ShouldNotBeNil)
}
