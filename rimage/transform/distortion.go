package transform

import "github.com/pkg/errors"

// DistortionType is the name of the distortion model.
type DistortionType string

// BrownConradyDistortionType is for simple lenses of narrow field easily
// modeled as a pinhole camera.
const BrownConradyDistortionType = DistortionType("brown_conrady")

// A Distorter undoes the lens distortion of a camera: given a distorted
// normalized image coordinate it computes the undistorted one. The bool is
// false when no undistorted coordinate exists for the input, i.e. the
// pixel's ray is undefined in the lens model.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Undistort(x, y float64) (float64, float64, bool)
}

// InvalidDistortionError is used when the distortion parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrapf(errors.New("invalid distortion_parameters"), "%s", msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}

// BrownConrady undoes Brown-Conrady lens distortion: given distorted
// normalized coordinates, it computes the corresponding undistorted ones
// with an iterative Newton-Raphson method.
//
// The forward model is:
//
//	x_d = x_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
//
// where r² = x_u² + y_u². Undistort solves for (x_u, y_u) given (x_d, y_d).
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes in a slice of floats that will be passed into the struct in order.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	if len(inp) == 0 {
		return &BrownConrady{}, nil
	}
	for i := len(inp); i < 5; i++ { // fill missing values with 0.0
		inp = append(inp, 0.0)
	}
	return &BrownConrady{inp[0], inp[1], inp[2], inp[3], inp[4]}, nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// CheckValid checks if the fields for BrownConrady have valid inputs.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	return nil
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2}
}

// Undistort computes the undistorted normalized coordinate for (xd, yd)
// with Newton-Raphson iteration on the forward model. It reports false if
// the iteration does not converge or hits a singular Jacobian, meaning the
// pixel has no defined ray.
func (bc *BrownConrady) Undistort(xd, yd float64) (float64, float64, bool) {
	if bc == nil {
		return xd, yd, true
	}

	// Start with the distorted point as initial guess.
	xu, yu := xd, yd

	const maxIterations = 20
	const tolerance = 1e-10

	converged := false
	for i := 0; i < maxIterations; i++ {
		r2 := xu*xu + yu*yu
		r4 := r2 * r2
		r6 := r4 * r2

		radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r6
		tanDistX := 2.0*bc.TangentialP1*xu*yu + bc.TangentialP2*(r2+2.0*xu*xu)
		tanDistY := 2.0*bc.TangentialP2*xu*yu + bc.TangentialP1*(r2+2.0*yu*yu)

		xdEst := xu*radDist + tanDistX
		ydEst := yu*radDist + tanDistY

		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			converged = true
			break
		}

		// Jacobian of the forward distortion function,
		// J = [[dxd/dxu, dxd/dyu], [dyd/dxu, dyd/dyu]].
		dRadDistDxu := 2.0 * xu * (bc.RadialK1 + 2.0*bc.RadialK2*r2 + 3.0*bc.RadialK3*r4)
		dRadDistDyu := 2.0 * yu * (bc.RadialK1 + 2.0*bc.RadialK2*r2 + 3.0*bc.RadialK3*r4)

		dxdDxu := radDist + xu*dRadDistDxu + 2.0*bc.TangentialP1*yu + bc.TangentialP2*6.0*xu
		dxdDyu := xu*dRadDistDyu + 2.0*bc.TangentialP1*xu + bc.TangentialP2*2.0*yu
		dydDxu := yu*dRadDistDxu + 2.0*bc.TangentialP2*yu + bc.TangentialP1*2.0*xu
		dydDyu := radDist + yu*dRadDistDyu + 2.0*bc.TangentialP2*xu + bc.TangentialP1*6.0*yu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			return 0, 0, false
		}

		// Update: [xu, yu] -= J^-1 * [errX, errY]
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}
	if !converged {
		return 0, 0, false
	}
	return xu, yu, true
}
