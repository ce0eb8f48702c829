package inference

import (
	"github.com/khaledhikmat/fsd-go/model"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

var (
	ErrModelNotFound = xerrors.New("model weights not found")
	ErrModelLoad     = xerrors.New("model weights could not be loaded")
	ErrLabels        = xerrors.New("class labels could not be loaded")
	ErrEmptyImage    = xerrors.New("empty image")
)

// IService is a loaded detection model. Detect returns only detections whose
// confidence is at least threshold, with boxes in the pixel space of img.
// The returned order is stable and must be preserved by callers.
type IService interface {
	Detect(img gocv.Mat, threshold float32) ([]model.Detection, error)
	Labels() model.Labels
	Close() error
}
