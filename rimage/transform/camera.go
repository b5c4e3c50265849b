// Package transform implements the depth/color reprojection transforms: it
// remaps pixel data between a calibrated depth camera and color camera and
// converts depth frames into 3D point frames.
package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrNoIntrinsics, "%s", msg)
}

// A DepthColorSystem provides the single-point projection primitives of a
// calibrated depth camera / color camera pair. The bulk transforms in this
// package are built entirely on top of these primitives.
type DepthColorSystem interface {
	// DepthResolution returns the depth camera resolution in pixels.
	DepthResolution() (width, height int)
	// ColorResolution returns the color camera resolution in pixels.
	ColorResolution() (width, height int)
	// DepthPointToColorPoint rigidly transforms a 3D point from the depth
	// camera's frame into the color camera's frame.
	DepthPointToColorPoint(pt r3.Vector) (r3.Vector, error)
	// ColorPointToPixel projects a 3D point in the color camera's frame to
	// a sub-pixel 2D image coordinate. The bool is false when the point
	// does not project into the lens model (e.g. it is behind the camera);
	// that is normal data, not an error. A non-nil error means the
	// calibration itself is unusable and the whole transform must abort.
	ColorPointToPixel(pt r3.Vector) (r2.Point, bool, error)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective
// projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point in the camera's
// own frame. The intrinsics parameters should be the ones of the sensor
// used to obtain the image that contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point to a sub-pixel coordinate in the image
// plane. Unlike a rounding projection, the fractional coordinate is kept so
// that callers can rasterize or interpolate with it.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		return (x/z)*params.Fx + params.Ppx, (y/z)*params.Fy + params.Ppy
	}
	// if depth is zero at this pixel, return negative coordinates so that
	// cropping to image bounds will filter it out
	return -1.0, -1.0
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

// Extrinsics is the rigid transform between two camera frames, a 3x3
// rotation matrix and a translation vector in millimeters.
type Extrinsics struct {
	rotation    [9]float64 // row-major, flattened for the per-pixel loops
	translation r3.Vector
}

// NewExtrinsics creates a rigid transform from a 3x3 rotation matrix and a
// translation in millimeters.
func NewExtrinsics(rotation *mat.Dense, translation r3.Vector) (*Extrinsics, error) {
	if rotation == nil {
		return nil, errors.New("rotation matrix is nil")
	}
	r, c := rotation.Dims()
	if r != 3 || c != 3 {
		return nil, errors.Errorf("rotation matrix must be 3x3, got %dx%d", r, c)
	}
	ext := &Extrinsics{translation: translation}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ext.rotation[3*i+j] = rotation.At(i, j)
		}
	}
	return ext, nil
}

// NewIdentityExtrinsics returns the identity rigid transform.
func NewIdentityExtrinsics() *Extrinsics {
	return &Extrinsics{rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// Transform applies the rigid transform to a 3D point.
func (e *Extrinsics) Transform(pt r3.Vector) r3.Vector {
	rot := &e.rotation
	return r3.Vector{
		X: rot[0]*pt.X + rot[1]*pt.Y + rot[2]*pt.Z + e.translation.X,
		Y: rot[3]*pt.X + rot[4]*pt.Y + rot[5]*pt.Z + e.translation.Y,
		Z: rot[6]*pt.X + rot[7]*pt.Y + rot[8]*pt.Z + e.translation.Z,
	}
}

// RotationMatrix returns a copy of the rotation as a gonum matrix.
func (e *Extrinsics) RotationMatrix() *mat.Dense {
	rot := make([]float64, 9)
	copy(rot, e.rotation[:])
	return mat.NewDense(3, 3, rot)
}

// Translation returns the translation component in millimeters.
func (e *Extrinsics) Translation() r3.Vector {
	return e.translation
}

// DepthColorCalibration is a concrete DepthColorSystem: pinhole models for
// both cameras, an optional depth lens distortion model, and the rigid
// transform from the depth camera's frame to the color camera's frame.
type DepthColorCalibration struct {
	DepthCamera     PinholeCameraIntrinsics
	ColorCamera     PinholeCameraIntrinsics
	DepthDistortion Distorter
	DepthToColor    *Extrinsics
}

// CheckValid checks that both cameras and the extrinsics are usable.
func (c *DepthColorCalibration) CheckValid() error {
	if c == nil {
		return errors.New("calibration is nil")
	}
	if err := c.DepthCamera.CheckValid(); err != nil {
		return errors.Wrap(err, "depth camera")
	}
	if err := c.ColorCamera.CheckValid(); err != nil {
		return errors.Wrap(err, "color camera")
	}
	if c.DepthToColor == nil {
		return errors.New("depth to color extrinsics are not available")
	}
	if c.DepthDistortion != nil {
		if err := c.DepthDistortion.CheckValid(); err != nil {
			return errors.Wrap(err, "depth distortion")
		}
	}
	return nil
}

// DepthResolution returns the depth camera resolution in pixels.
func (c *DepthColorCalibration) DepthResolution() (int, int) {
	return c.DepthCamera.Width, c.DepthCamera.Height
}

// ColorResolution returns the color camera resolution in pixels.
func (c *DepthColorCalibration) ColorResolution() (int, int) {
	return c.ColorCamera.Width, c.ColorCamera.Height
}

// DepthPointToColorPoint rigidly transforms a 3D point from the depth
// camera's frame into the color camera's frame.
func (c *DepthColorCalibration) DepthPointToColorPoint(pt r3.Vector) (r3.Vector, error) {
	if c.DepthToColor == nil {
		return r3.Vector{}, errors.New("depth to color extrinsics are not available")
	}
	return c.DepthToColor.Transform(pt), nil
}

// ColorPointToPixel projects a 3D point in the color camera's frame to a
// sub-pixel image coordinate. Points at or behind the camera plane are
// reported as not projectable, which is normal data.
func (c *DepthColorCalibration) ColorPointToPixel(pt r3.Vector) (r2.Point, bool, error) {
	if c.ColorCamera.Fx <= 0 || c.ColorCamera.Fy <= 0 {
		return r2.Point{}, false, NewNoIntrinsicsError("color camera focal length is not set")
	}
	if pt.Z <= 0 {
		return r2.Point{}, false, nil
	}
	px, py := c.ColorCamera.PointToPixel(pt.X, pt.Y, pt.Z)
	return r2.Point{X: px, Y: py}, true, nil
}

// depthColorCalibrationConfig is the JSON wire format of a calibration.
type depthColorCalibrationConfig struct {
	DepthCamera     PinholeCameraIntrinsics `json:"depth_camera"`
	ColorCamera     PinholeCameraIntrinsics `json:"color_camera"`
	Rotation        []float64               `json:"rotation"`
	TranslationMM   []float64               `json:"translation_mm"`
	DistortionType  string                  `json:"distortion_type,omitempty"`
	DistortionParms []float64               `json:"distortion_parameters,omitempty"`
}

// NewDepthColorCalibrationFromJSONFile reads a calibration from a JSON file.
func NewDepthColorCalibrationFromJSONFile(jsonPath string) (*DepthColorCalibration, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	return NewDepthColorCalibrationFromJSON(byteValue)
}

// NewDepthColorCalibrationFromJSON parses a calibration from JSON bytes.
func NewDepthColorCalibrationFromJSON(data []byte) (*DepthColorCalibration, error) {
	conf := &depthColorCalibrationConfig{}
	if err := json.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if len(conf.Rotation) != 9 {
		return nil, errors.Errorf("rotation must have 9 elements, got %d", len(conf.Rotation))
	}
	if len(conf.TranslationMM) != 3 {
		return nil, errors.Errorf("translation_mm must have 3 elements, got %d", len(conf.TranslationMM))
	}
	ext, err := NewExtrinsics(
		mat.NewDense(3, 3, conf.Rotation),
		r3.Vector{X: conf.TranslationMM[0], Y: conf.TranslationMM[1], Z: conf.TranslationMM[2]},
	)
	if err != nil {
		return nil, err
	}
	calib := &DepthColorCalibration{
		DepthCamera:  conf.DepthCamera,
		ColorCamera:  conf.ColorCamera,
		DepthToColor: ext,
	}
	if conf.DistortionType != "" {
		distortion, err := NewDistorter(DistortionType(conf.DistortionType), conf.DistortionParms)
		if err != nil {
			return nil, err
		}
		calib.DepthDistortion = distortion
	}
	if err := calib.CheckValid(); err != nil {
		return nil, err
	}
	return calib, nil
}
