package transform

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/reproject/rimage"
)

// ErrBufferTooSmall is returned when the destination frame's descriptor or
// buffer does not match what the calibration requires. The caller may
// allocate a corrected destination and retry. Every other validation error
// is fatal: a mismatch on a required input means the caller's input is
// malformed and retrying cannot help.
var ErrBufferTooSmall = errors.New("destination buffer descriptor mismatch")

// expectedDepthDescriptor is the layout a depth frame must have for the
// calibration's depth camera: one uint16 per pixel, tightly packed.
func expectedDepthDescriptor(sys DepthColorSystem) rimage.Descriptor {
	w, h := sys.DepthResolution()
	return rimage.NewDescriptor(w, h, 2)
}

// expectedColorDescriptor is the layout a color frame must have for the
// calibration's color camera: four bytes per pixel, tightly packed.
func expectedColorDescriptor(sys DepthColorSystem) rimage.Descriptor {
	w, h := sys.ColorResolution()
	return rimage.NewDescriptor(w, h, 4)
}

// expectedTransformedDepthDescriptor is the layout of a depth frame
// reprojected into the color camera: color resolution, uint16 pixels.
func expectedTransformedDepthDescriptor(sys DepthColorSystem) rimage.Descriptor {
	w, h := sys.ColorResolution()
	return rimage.NewDescriptor(w, h, 2)
}

// expectedTransformedColorDescriptor is the layout of a color frame
// reprojected into the depth camera: depth resolution, BGRA pixels.
func expectedTransformedColorDescriptor(sys DepthColorSystem) rimage.Descriptor {
	w, h := sys.DepthResolution()
	return rimage.NewDescriptor(w, h, 4)
}

// expectedPointDescriptor is the layout of a point frame for a given
// unprojection table: table resolution, three int16 values per pixel.
func expectedPointDescriptor(table *XYTable) rimage.Descriptor {
	return rimage.NewDescriptor(table.Width, table.Height, 6)
}

func descriptorMismatchError(name string, expected, actual rimage.Descriptor, logger golog.Logger) error {
	logger.Errorf("unexpected %s descriptor; expected width: %d, height: %d, stride: %d, "+
		"actual width: %d, height: %d, stride: %d",
		name, expected.Width, expected.Height, expected.Stride,
		actual.Width, actual.Height, actual.Stride)
	return errors.Errorf("unexpected %s descriptor", name)
}

// validateDestinationDepth checks the destination of the depth-to-color
// transform; mismatches are retryable.
func validateDestinationDepth(sys DepthColorSystem, dst *rimage.DepthFrame, logger golog.Logger) error {
	if dst == nil {
		logger.Error("transformed depth frame is nil")
		return errors.New("transformed depth frame is nil")
	}
	expected := expectedTransformedDepthDescriptor(sys)
	if dst.Bytes() == nil {
		logger.Error("transformed depth frame buffer is nil")
		return errors.Wrap(ErrBufferTooSmall, "transformed depth frame buffer is nil")
	}
	if !dst.Descriptor().Equals(expected) {
		err := descriptorMismatchError("transformed depth frame", expected, dst.Descriptor(), logger)
		return errors.Wrap(ErrBufferTooSmall, err.Error())
	}
	return nil
}

// validateDestinationColor checks the destination of the color-to-depth
// transform; mismatches are retryable.
func validateDestinationColor(sys DepthColorSystem, dst *rimage.ColorFrame, logger golog.Logger) error {
	if dst == nil {
		logger.Error("transformed color frame is nil")
		return errors.New("transformed color frame is nil")
	}
	expected := expectedTransformedColorDescriptor(sys)
	if dst.Bytes() == nil {
		logger.Error("transformed color frame buffer is nil")
		return errors.Wrap(ErrBufferTooSmall, "transformed color frame buffer is nil")
	}
	if !dst.Descriptor().Equals(expected) {
		err := descriptorMismatchError("transformed color frame", expected, dst.Descriptor(), logger)
		return errors.Wrap(ErrBufferTooSmall, err.Error())
	}
	return nil
}

// validateSourceDepth checks a required input depth frame; mismatches are
// fatal.
func validateSourceDepth(expected rimage.Descriptor, depth *rimage.DepthFrame, logger golog.Logger) error {
	if depth == nil || depth.Bytes() == nil {
		logger.Error("depth frame is nil")
		return errors.New("depth frame is nil")
	}
	if !depth.Descriptor().Equals(expected) {
		return descriptorMismatchError("depth frame", expected, depth.Descriptor(), logger)
	}
	return nil
}

// validateSourceColor checks a required input color frame; mismatches are
// fatal.
func validateSourceColor(sys DepthColorSystem, color *rimage.ColorFrame, logger golog.Logger) error {
	if color == nil || color.Bytes() == nil {
		logger.Error("color frame is nil")
		return errors.New("color frame is nil")
	}
	expected := expectedColorDescriptor(sys)
	if !color.Descriptor().Equals(expected) {
		return descriptorMismatchError("color frame", expected, color.Descriptor(), logger)
	}
	return nil
}

// validateTable checks that a required unprojection table is present and
// matches the calibration's depth resolution; mismatches are fatal.
func validateTable(sys DepthColorSystem, table *XYTable, logger golog.Logger) error {
	if table == nil {
		logger.Error("depth camera xy table is nil")
		return errors.New("depth camera xy table is nil")
	}
	w, h := sys.DepthResolution()
	if table.Width != w || table.Height != h {
		logger.Errorf("unexpected xy table size; expected %dx%d, actual %dx%d", w, h, table.Width, table.Height)
		return errors.New("unexpected xy table size")
	}
	if len(table.X) < w*h || len(table.Y) < w*h {
		logger.Error("xy table factor arrays are too short")
		return errors.New("xy table factor arrays are too short")
	}
	return nil
}
