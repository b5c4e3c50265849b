package transform

import (
	"math"

	"github.com/pkg/errors"
)

// An XYTable holds per-pixel unprojection factors for a camera: multiplying
// a pixel's factors by its depth yields the x and y coordinates of the 3D
// point in the camera's own frame. X and Y are parallel arrays with one
// entry per pixel in row-major order. A pixel whose ray is undefined in the
// lens model holds NaN in both factors. The table is read-only during
// transforms and must be regenerated if the calibration changes.
type XYTable struct {
	Width  int
	Height int
	X      []float32
	Y      []float32
}

// NewXYTable allocates an empty table for the given resolution.
func NewXYTable(width, height int) (*XYTable, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid xy table size (%d, %d)", width, height)
	}
	n := width * height
	return &XYTable{
		Width:  width,
		Height: height,
		X:      make([]float32, n),
		Y:      make([]float32, n),
	}, nil
}

// invalid marks the pixel's ray as undefined.
func (t *XYTable) invalid(idx int) {
	t.X[idx] = float32(math.NaN())
	t.Y[idx] = float32(math.NaN())
}

// NewDepthXYTable precomputes the unprojection table of the calibration's
// depth camera. Each pixel center is unprojected at unit depth; if the
// camera has a distortion model, pixels whose undistortion does not
// converge get the NaN sentinel.
func NewDepthXYTable(calib *DepthColorCalibration) (*XYTable, error) {
	if err := calib.CheckValid(); err != nil {
		return nil, err
	}
	cam := &calib.DepthCamera
	table, err := NewXYTable(cam.Width, cam.Height)
	if err != nil {
		return nil, err
	}
	idx := 0
	for v := 0; v < cam.Height; v++ {
		for u := 0; u < cam.Width; u++ {
			x := (float64(u) - cam.Ppx) / cam.Fx
			y := (float64(v) - cam.Ppy) / cam.Fy
			if calib.DepthDistortion != nil {
				var ok bool
				x, y, ok = calib.DepthDistortion.Undistort(x, y)
				if !ok {
					table.invalid(idx)
					idx++
					continue
				}
			}
			table.X[idx] = float32(x)
			table.Y[idx] = float32(y)
			idx++
		}
	}
	return table, nil
}
