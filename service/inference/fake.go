package inference

import (
	"image"
	"sync"

	"github.com/khaledhikmat/fsd-go/model"
	"gocv.io/x/gocv"
)

// Fake is a detector that reports a fixed set of detections for every
// image. It applies the threshold the same way the real detector does and
// records what it was asked to look at.
type Fake struct {
	mu         sync.Mutex
	labels     model.Labels
	detections []model.Detection
	sizes      []image.Point
}

func NewFake(labels model.Labels, detections ...model.Detection) *Fake {
	return &Fake{
		labels:     labels,
		detections: detections,
	}
}

func (svc *Fake) Detect(img gocv.Mat, threshold float32) ([]model.Detection, error) {
	if img.Empty() {
		return nil, ErrEmptyImage
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.sizes = append(svc.sizes, image.Pt(img.Cols(), img.Rows()))

	out := []model.Detection{}
	for _, d := range svc.detections {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out, nil
}

func (svc *Fake) Labels() model.Labels {
	return svc.labels
}

func (svc *Fake) Close() error {
	return nil
}

// Calls returns the size of every image passed to Detect, in call order.
func (svc *Fake) Calls() []image.Point {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	out := make([]image.Point, len(svc.sizes))
	copy(out, svc.sizes)
	return out
}
