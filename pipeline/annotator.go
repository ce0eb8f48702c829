package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/khaledhikmat/fsd-go/model"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// gocv maps color.RGBA onto BGR Mats itself, so this is red on screen.
var BoxColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}

const (
	BoxThickness   = 2
	LabelOffset    = 10
	LabelScale     = 0.6
	LabelThickness = 2
	LabelFont      = gocv.FontHersheySimplex
)

// Label is the text drawn next to a detection, e.g. "fire 0.92".
func Label(labels model.Labels, d model.Detection) string {
	return fmt.Sprintf("%s %.2f", labels.Name(d.ClassID), d.Confidence)
}

// LabelOrigin is the bottom-left corner of a detection's label. It may lie
// above the image; OpenCV clips whatever falls outside.
func LabelOrigin(d model.Detection) image.Point {
	return image.Pt(d.Rect.Min.X, d.Rect.Min.Y-LabelOffset)
}

// Annotate returns a copy of img with every detection drawn on it. img and
// detections are left untouched. The caller owns the returned Mat.
func Annotate(img gocv.Mat, detections []model.Detection, labels model.Labels) (gocv.Mat, error) {
	out := img.Clone()
	if err := AnnotateInPlace(&out, detections, labels); err != nil {
		out.Close()
		return gocv.NewMat(), err
	}
	return out, nil
}

// AnnotateInPlace draws detections directly onto img, in slice order. It
// stops at the first drawing call OpenCV rejects.
func AnnotateInPlace(img *gocv.Mat, detections []model.Detection, labels model.Labels) error {
	if len(detections) > 0 && img.Empty() {
		return xerrors.New("cannot annotate an empty image")
	}

	for i, d := range detections {
		if err := gocv.Rectangle(img, d.Rect, BoxColor, BoxThickness); err != nil {
			return xerrors.Errorf("error drawing box %d: %w", i, err)
		}
		if err := gocv.PutText(img, Label(labels, d), LabelOrigin(d), LabelFont, LabelScale, BoxColor, LabelThickness); err != nil {
			return xerrors.Errorf("error drawing label %d: %w", i, err)
		}
	}
	return nil
}
