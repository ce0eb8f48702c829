package pipeline

import (
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// ToDisplay converts a BGR frame into the RGBA order display sinks expect.
// The returned image owns its pixels; mat can be closed right after.
func ToDisplay(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, xerrors.New("empty frame")
	}

	if mat.Channels() != 3 {
		return nil, xerrors.Errorf("expected a 3 channel BGR frame, got %d channels", mat.Channels())
	}

	rgba := gocv.NewMat()
	defer rgba.Close()

	if err := gocv.CvtColor(mat, &rgba, gocv.ColorBGRToRGBA); err != nil {
		return nil, xerrors.Errorf("failed to convert frame to RGBA: %w", err)
	}

	return &image.RGBA{
		Pix:    rgba.ToBytes(),
		Stride: rgba.Cols() * 4,
		Rect:   image.Rect(0, 0, rgba.Cols(), rgba.Rows()),
	}, nil
}
