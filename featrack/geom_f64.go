package featrack

import (
	"image"
	"math"
)

// Point is a sub-pixel image location
type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func NewPointFrom(point image.Point) Point {
	return Point{
		X: float64(point.X),
		Y: float64(point.Y),
	}
}

// DistanceTo returns euclidean distance to other point
func (p Point) DistanceTo(other Point) float64 {
	return euclideanDistance(p, other)
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}

// Image is the only view of imagery the tracker needs: its size.
// Detectors and extractors are free to type-assert to their own concrete images.
type Image interface {
	Width() int
	Height() int
}

// imageSize is a bare Image carrying dimensions only
type imageSize struct {
	width  int
	height int
}

func (sz imageSize) Width() int  { return sz.width }
func (sz imageSize) Height() int { return sz.height }

// NewImageSize returns Image with given dimensions and no pixel data
func NewImageSize(width, height int) Image {
	return imageSize{width: width, height: height}
}

// StdImage adapts image.Image to Image
type StdImage struct {
	image.Image
}

// NewImageFrom wraps standard library image
func NewImageFrom(img image.Image) StdImage {
	return StdImage{Image: img}
}

// Width returns width of underlying image bounds
func (img StdImage) Width() int {
	if img.Image == nil {
		return 0
	}
	return img.Bounds().Dx()
}

// Height returns height of underlying image bounds
func (img StdImage) Height() int {
	if img.Image == nil {
		return 0
	}
	return img.Bounds().Dy()
}

// isEmptyImage reports whether image is absent or has zero area
func isEmptyImage(img Image) bool {
	if img == nil {
		return true
	}
	return img.Width()*img.Height() == 0
}
