package display

import "image"

// ISink renders frames. Every Publish replaces whatever was shown before.
// Images are expected in RGB(A) order.
type ISink interface {
	Publish(img image.Image) error
}
