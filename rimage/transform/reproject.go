package transform

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/reproject/rimage"
	"go.viam.com/reproject/utils"
)

// DepthFrameToColorFrame reprojects a depth frame into the color camera's
// projection, writing into dst. dst must have the color camera's resolution
// with a 2-byte stride; a mismatched dst returns an error wrapping
// ErrBufferTooSmall so the caller can resize and retry. The destination is
// zero-filled first; pixels no depth surface projects to stay 0. When two
// surfaces land on the same destination pixel the nearer one wins. On a
// fatal projection error the destination contents are undefined.
func DepthFrameToColorFrame(
	sys DepthColorSystem,
	table *XYTable,
	depth *rimage.DepthFrame,
	dst *rimage.DepthFrame,
	logger golog.Logger,
) error {
	if err := validateDepthToColor(sys, table, depth, dst, logger); err != nil {
		return err
	}
	return depthToColor(sys, table, depth, dst)
}

func validateDepthToColor(
	sys DepthColorSystem,
	table *XYTable,
	depth, dst *rimage.DepthFrame,
	logger golog.Logger,
) error {
	if sys == nil {
		logger.Error("calibration is nil")
		return errors.New("calibration is nil")
	}
	if err := validateDestinationDepth(sys, dst, logger); err != nil {
		return err
	}
	if err := validateTable(sys, table, logger); err != nil {
		return err
	}
	return validateSourceDepth(expectedDepthDescriptor(sys), depth, logger)
}

// depthToColor walks the depth image as 2x2 quads of correspondences and
// rasterizes each one into dst. The first row of correspondences is
// computed up front into a scratch row; every following row reuses the
// previous row's values as its top edge so each pixel is projected exactly
// once.
func depthToColor(sys DepthColorSystem, table *XYTable, depth, dst *rimage.DepthFrame) error {
	dst.Zero()

	width := depth.Width()
	height := depth.Height()
	dstWidth := dst.Width()
	dstHeight := dst.Height()
	pix := depth.Pix()

	vertexRow := make([]correspondence, width)

	idx := 0
	for ; idx < width; idx++ {
		v, err := computeCorrespondence(idx, pix[idx], sys, table)
		if err != nil {
			return err
		}
		vertexRow[idx] = v
	}

	for y := 1; y < height; y++ {
		topLeft := vertexRow[0]
		bottomLeft, err := computeCorrespondence(idx, pix[idx], sys, table)
		if err != nil {
			return err
		}
		idx++
		vertexRow[0] = bottomLeft

		for x := 1; x < width; x, idx = x+1, idx+1 {
			topRight := vertexRow[x]
			bottomRight, err := computeCorrespondence(idx, pix[idx], sys, table)
			if err != nil {
				return err
			}

			if q, ok := repairQuad(topLeft, topRight, bottomRight, bottomLeft); ok {
				box := q.computeBoundingBox(dstWidth, dstHeight)
				q.rasterize(box, dst)
			}

			vertexRow[x] = bottomRight
			topLeft = topRight
			bottomLeft = bottomRight
		}
	}
	return nil
}

// ColorFrameToDepthFrame reprojects a color frame into the depth camera's
// projection, writing into dst. dst must have the depth camera's resolution
// with a 4-byte BGRA stride; a mismatched dst returns an error wrapping
// ErrBufferTooSmall so the caller can resize and retry. The destination is
// zero-filled first; a pixel stays (0,0,0,0) when its depth is zero, its
// ray is undefined, or it projects outside the color image. A legitimately
// sampled (0,0,0,0) is stored as (1,0,0,0) so it stays distinguishable from
// "not written". On a fatal projection error the destination contents are
// undefined.
func ColorFrameToDepthFrame(
	sys DepthColorSystem,
	table *XYTable,
	depth *rimage.DepthFrame,
	color *rimage.ColorFrame,
	dst *rimage.ColorFrame,
	logger golog.Logger,
) error {
	if err := validateColorToDepth(sys, table, depth, color, dst, logger); err != nil {
		return err
	}
	return colorToDepth(sys, table, depth, color, dst)
}

func validateColorToDepth(
	sys DepthColorSystem,
	table *XYTable,
	depth *rimage.DepthFrame,
	color, dst *rimage.ColorFrame,
	logger golog.Logger,
) error {
	if sys == nil {
		logger.Error("calibration is nil")
		return errors.New("calibration is nil")
	}
	if err := validateDestinationColor(sys, dst, logger); err != nil {
		return err
	}
	if err := validateTable(sys, table, logger); err != nil {
		return err
	}
	if err := validateSourceDepth(expectedDepthDescriptor(sys), depth, logger); err != nil {
		return err
	}
	return validateSourceColor(sys, color, logger)
}

// colorToDepth computes an independent correspondence for every depth pixel
// and bilinearly samples the color image there. Rows are independent, so
// the image is processed in parallel bands.
func colorToDepth(sys DepthColorSystem, table *XYTable, depth *rimage.DepthFrame, color, dst *rimage.ColorFrame) error {
	dst.Zero()

	width := depth.Width()
	pix := depth.Pix()
	colorWidth := color.Width()
	colorHeight := color.Height()

	return utils.GroupWorkParallel(depth.Height(), func(groupNum, from, to int) error {
		for y := from; y < to; y++ {
			rowStart := y * width
			for x := 0; x < width; x++ {
				idx := rowStart + x
				v, err := computeCorrespondence(idx, pix[idx], sys, table)
				if err != nil {
					return err
				}
				if !v.valid || !pointInsideInterior(colorWidth, colorHeight, v.point) {
					continue
				}

				b := bilinearInterpolation(color.Bytes(), color.Descriptor().Stride, v.point)
				g := bilinearInterpolation(color.Bytes()[1:], color.Descriptor().Stride, v.point)
				r := bilinearInterpolation(color.Bytes()[2:], color.Descriptor().Stride, v.point)
				alpha := bilinearInterpolation(color.Bytes()[3:], color.Descriptor().Stride, v.point)

				// (0,0,0,0) marks an unwritten pixel. A valid sample that
				// comes out exactly (0,0,0,0) is stored as (1,0,0,0): still
				// valid and very close to black.
				if b == 0 && g == 0 && r == 0 && alpha == 0 {
					b++
				}
				dst.SetBGRA(x, y, b, g, r, alpha)
			}
		}
		return nil
	})
}

// pointInsideInterior reports whether point lies strictly inside a width x
// height image with a one pixel margin, so that the 2x2 bilinear
// neighborhood around it is fully in bounds.
func pointInsideInterior(width, height int, point r2.Point) bool {
	xFloor := int(math.Floor(point.X))
	yFloor := int(math.Floor(point.Y))
	return xFloor >= 0 && yFloor >= 0 && xFloor+1 < width && yFloor+1 < height
}

// bilinearInterpolation samples one channel of a 4-channel image at a
// fractional coordinate with standard 2x2 bilinear weights. channel selects
// the channel via the slice offset of its first pixel.
func bilinearInterpolation(channel []byte, stride int, point r2.Point) uint8 {
	xFloor := int(math.Floor(point.X))
	yFloor := int(math.Floor(point.Y))
	xFrac := point.X - float64(xFloor)
	yFrac := point.Y - float64(yFloor)

	idx := yFloor*stride + 4*xFloor
	topLeft := float64(channel[idx])
	topRight := float64(channel[idx+4])
	idx += stride
	bottomLeft := float64(channel[idx])
	bottomRight := float64(channel[idx+4])

	top := (1-xFrac)*topLeft + xFrac*topRight
	bottom := (1-xFrac)*bottomLeft + xFrac*bottomRight
	return uint8((1-yFrac)*top + yFrac*bottom + 0.5)
}
