// Package rimage defines the pixel buffer types shared by the reprojection
// transforms: 16-bit depth frames, BGRA color frames and int16 point frames.
package rimage

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Descriptor describes the memory layout of a rectangular pixel buffer.
// Stride is in bytes and must be at least Width times the pixel size.
type Descriptor struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
	Stride int `json:"stride_bytes"`
}

// NewDescriptor returns a descriptor for a tightly packed buffer of the
// given pixel size.
func NewDescriptor(width, height, pixelSize int) Descriptor {
	return Descriptor{Width: width, Height: height, Stride: width * pixelSize}
}

// Equals reports whether two descriptors describe the same layout.
func (d Descriptor) Equals(other Descriptor) bool {
	return d.Width == other.Width && d.Height == other.Height && d.Stride == other.Stride
}

// checkLayout validates the descriptor against a backing buffer.
func (d Descriptor) checkLayout(pixelSize int, buf []byte) error {
	if d.Width <= 0 || d.Height <= 0 {
		return errors.Errorf("invalid frame size (%d, %d)", d.Width, d.Height)
	}
	if d.Stride < d.Width*pixelSize {
		return errors.Errorf("stride %d too small for width %d with %d byte pixels", d.Stride, d.Width, pixelSize)
	}
	if len(buf) < d.Stride*d.Height {
		return errors.Errorf("buffer length %d too small for descriptor %dx%d stride %d",
			len(buf), d.Width, d.Height, d.Stride)
	}
	return nil
}

// uint16View reinterprets b as a []uint16 sharing the same backing memory.
// Both views alias the same bytes; elements are in host byte order. The
// caller must ensure b is 2-byte aligned and of even length.
func uint16View(b []byte) []uint16 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b[0])), len(b)/2)
}

// int16View reinterprets b as a []int16 sharing the same backing memory.
func int16View(b []byte) []int16 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), len(b)/2)
}

func checkAligned(b []byte) error {
	if len(b)%2 != 0 {
		return errors.Errorf("buffer length %d is not a multiple of 2", len(b))
	}
	if uintptr(unsafe.Pointer(&b[0]))%unsafe.Alignof(uint16(0)) != 0 {
		return errors.New("buffer is not 2 byte aligned")
	}
	return nil
}

// DepthFrame is a row-major buffer of 16-bit unsigned depth samples in
// millimeters. A sample of 0 means no return at that pixel. The frame does
// not own its storage; Bytes and Pix are two views over the same
// caller-allocated memory.
type DepthFrame struct {
	desc  Descriptor
	bytes []byte
	pix   []uint16
}

// NewDepthFrame wraps a caller-allocated buffer as a depth frame.
func NewDepthFrame(desc Descriptor, buf []byte) (*DepthFrame, error) {
	if err := desc.checkLayout(2, buf); err != nil {
		return nil, errors.Wrap(err, "cannot create depth frame")
	}
	if err := checkAligned(buf); err != nil {
		return nil, errors.Wrap(err, "cannot create depth frame")
	}
	return &DepthFrame{desc: desc, bytes: buf, pix: uint16View(buf)}, nil
}

// NewEmptyDepthFrame allocates a zeroed, tightly packed depth frame.
func NewEmptyDepthFrame(width, height int) *DepthFrame {
	desc := NewDescriptor(width, height, 2)
	buf := make([]byte, desc.Stride*desc.Height)
	return &DepthFrame{desc: desc, bytes: buf, pix: uint16View(buf)}
}

// Descriptor returns the frame's layout.
func (f *DepthFrame) Descriptor() Descriptor {
	return f.desc
}

// Width returns the frame width in pixels.
func (f *DepthFrame) Width() int {
	return f.desc.Width
}

// Height returns the frame height in pixels.
func (f *DepthFrame) Height() int {
	return f.desc.Height
}

// Bytes returns the byte view of the backing buffer.
func (f *DepthFrame) Bytes() []byte {
	return f.bytes
}

// Pix returns the uint16 view of the backing buffer, including any row
// padding implied by the stride.
func (f *DepthFrame) Pix() []uint16 {
	return f.pix
}

// Row returns the y-th row as a uint16 slice of Width samples.
func (f *DepthFrame) Row(y int) []uint16 {
	start := y * f.desc.Stride / 2
	return f.pix[start : start+f.desc.Width]
}

// GetDepth returns the depth sample at (x, y).
func (f *DepthFrame) GetDepth(x, y int) uint16 {
	return f.Row(y)[x]
}

// Set stores a depth sample at (x, y).
func (f *DepthFrame) Set(x, y int, d uint16) {
	f.Row(y)[x] = d
}

// Zero clears every byte of the frame, including row padding.
func (f *DepthFrame) Zero() {
	clear(f.bytes[:f.desc.Stride*f.desc.Height])
}

// ColorFrame is a row-major buffer of 4-channel 8-bit pixels in B, G, R,
// alpha order. The frame does not own its storage.
type ColorFrame struct {
	desc  Descriptor
	bytes []byte
}

// NewColorFrame wraps a caller-allocated buffer as a BGRA color frame.
func NewColorFrame(desc Descriptor, buf []byte) (*ColorFrame, error) {
	if err := desc.checkLayout(4, buf); err != nil {
		return nil, errors.Wrap(err, "cannot create color frame")
	}
	return &ColorFrame{desc: desc, bytes: buf}, nil
}

// NewEmptyColorFrame allocates a zeroed, tightly packed color frame.
func NewEmptyColorFrame(width, height int) *ColorFrame {
	desc := NewDescriptor(width, height, 4)
	return &ColorFrame{desc: desc, bytes: make([]byte, desc.Stride*desc.Height)}
}

// Descriptor returns the frame's layout.
func (f *ColorFrame) Descriptor() Descriptor {
	return f.desc
}

// Width returns the frame width in pixels.
func (f *ColorFrame) Width() int {
	return f.desc.Width
}

// Height returns the frame height in pixels.
func (f *ColorFrame) Height() int {
	return f.desc.Height
}

// Bytes returns the byte view of the backing buffer.
func (f *ColorFrame) Bytes() []byte {
	return f.bytes
}

// GetBGRA returns the four channels of the pixel at (x, y).
func (f *ColorFrame) GetBGRA(x, y int) (b, g, r, a uint8) {
	i := y*f.desc.Stride + 4*x
	return f.bytes[i], f.bytes[i+1], f.bytes[i+2], f.bytes[i+3]
}

// SetBGRA stores the four channels of the pixel at (x, y).
func (f *ColorFrame) SetBGRA(x, y int, b, g, r, a uint8) {
	i := y*f.desc.Stride + 4*x
	f.bytes[i] = b
	f.bytes[i+1] = g
	f.bytes[i+2] = r
	f.bytes[i+3] = a
}

// Zero clears every byte of the frame, including row padding.
func (f *ColorFrame) Zero() {
	clear(f.bytes[:f.desc.Stride*f.desc.Height])
}

// PointFrame is a row-major buffer of (x, y, z) triples of signed 16-bit
// millimeter coordinates, on the same pixel grid as the depth frame it was
// projected from. Bytes and Points are two views over the same
// caller-allocated memory.
type PointFrame struct {
	desc   Descriptor
	bytes  []byte
	points []int16
}

// NewPointFrame wraps a caller-allocated buffer as a point frame.
func NewPointFrame(desc Descriptor, buf []byte) (*PointFrame, error) {
	if err := desc.checkLayout(6, buf); err != nil {
		return nil, errors.Wrap(err, "cannot create point frame")
	}
	if err := checkAligned(buf); err != nil {
		return nil, errors.Wrap(err, "cannot create point frame")
	}
	return &PointFrame{desc: desc, bytes: buf, points: int16View(buf)}, nil
}

// NewEmptyPointFrame allocates a zeroed, tightly packed point frame.
func NewEmptyPointFrame(width, height int) *PointFrame {
	desc := NewDescriptor(width, height, 6)
	buf := make([]byte, desc.Stride*desc.Height)
	return &PointFrame{desc: desc, bytes: buf, points: int16View(buf)}
}

// Descriptor returns the frame's layout.
func (f *PointFrame) Descriptor() Descriptor {
	return f.desc
}

// Width returns the frame width in pixels.
func (f *PointFrame) Width() int {
	return f.desc.Width
}

// Height returns the frame height in pixels.
func (f *PointFrame) Height() int {
	return f.desc.Height
}

// Bytes returns the byte view of the backing buffer.
func (f *PointFrame) Bytes() []byte {
	return f.bytes
}

// Points returns the int16 view of the backing buffer, three values per
// pixel, including any row padding implied by the stride.
func (f *PointFrame) Points() []int16 {
	return f.points
}

// GetPoint returns the (x, y, z) triple of the pixel at (x, y).
func (f *PointFrame) GetPoint(x, y int) (px, py, pz int16) {
	i := y*f.desc.Stride/2 + 3*x
	return f.points[i], f.points[i+1], f.points[i+2]
}

// Zero clears every byte of the frame, including row padding.
func (f *PointFrame) Zero() {
	clear(f.bytes[:f.desc.Stride*f.desc.Height])
}
