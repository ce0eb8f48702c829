package pipeline

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/khaledhikmat/fsd-go/model"
	"github.com/khaledhikmat/fsd-go/service/config"
	"github.com/khaledhikmat/fsd-go/service/inference"
	"github.com/khaledhikmat/fsd-go/service/status"
	"gocv.io/x/gocv"
)

var fireSmoke = model.Labels{"fire", "smoke"}

// fakeCamera delivers uniform 1280x720 frames whose gray level is the
// 1-based read index, and fails from read failAt on (0 means never).
type fakeCamera struct {
	reads  atomic.Int64
	closes atomic.Int64
	failAt int64
}

func (c *fakeCamera) Read(frame *gocv.Mat) bool {
	n := c.reads.Add(1)
	if c.failAt > 0 && n >= c.failAt {
		return false
	}

	v := float64(n % 256)
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), 720, 1280, gocv.MatTypeCV8UC3)
	defer src.Close()
	src.CopyTo(frame)
	return true
}

func (c *fakeCamera) Close() error {
	c.closes.Add(1)
	return nil
}

// cameraRig hands out a fresh fakeCamera per acquisition and keeps count.
type cameraRig struct {
	mu      sync.Mutex
	failAt  int64
	openErr error
	cameras []*fakeCamera
}

func (r *cameraRig) open(_ int) (Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	camera := &fakeCamera{failAt: r.failAt}
	r.cameras = append(r.cameras, camera)
	return camera, r.openErr
}

func (r *cameraRig) counts() (acquired, released int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.cameras {
		released += int(c.closes.Load())
	}
	return len(r.cameras), released
}

type recordingSink struct {
	mu     sync.Mutex
	images []image.Image
}

func (s *recordingSink) Publish(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, img)
	return nil
}

func (s *recordingSink) published() []image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]image.Image, len(s.images))
	copy(out, s.images)
	return out
}

// gray returns the gray level of a pixel known to be outside any box.
func gray(img image.Image) uint8 {
	c := color.RGBAModel.Convert(img.At(5, 5)).(color.RGBA)
	return c.R
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []status.Event
}

func (n *recordingNotifier) Publish(event status.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) ofType(t status.EventType) []status.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []status.Event{}
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// countdownFlag reports true n times, then false forever.
type countdownFlag struct {
	left atomic.Int64
}

func newCountdownFlag(n int64) *countdownFlag {
	f := &countdownFlag{}
	f.left.Store(n)
	return f
}

func (f *countdownFlag) Load() bool {
	return f.left.Add(-1) >= 0
}

func newTestServices(detector inference.IService, sink *recordingSink, notifier *recordingNotifier) ServicesFactory {
	return ServicesFactory{
		CfgSvc:       config.NewFromMap(nil),
		InferenceSvc: detector,
		DisplaySvc:   sink,
		StatusSvc:    notifier,
	}
}

func fireAt(rect image.Rectangle, confidence float32) model.Detection {
	return model.Detection{Rect: rect, ClassID: 0, Confidence: confidence}
}

func blackMat(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC3)
}
