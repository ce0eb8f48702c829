package pipeline

import (
	"github.com/khaledhikmat/fsd-go/service/config"
	"github.com/khaledhikmat/fsd-go/service/display"
	"github.com/khaledhikmat/fsd-go/service/inference"
	"github.com/khaledhikmat/fsd-go/service/status"
	"golang.org/x/xerrors"
)

var (
	ErrDecode     = xerrors.New("image could not be decoded")
	ErrCameraOpen = xerrors.New("camera could not be opened")
	ErrCapture    = xerrors.New("camera read failed")
)

// CaptureFailedMessage is what the user sees when the webcam stops
// delivering frames.
const CaptureFailedMessage = "Failed to access webcam."

// ServicesFactory carries the services shared by both pipelines. The
// detector is loaded once and passed around by reference.
type ServicesFactory struct {
	CfgSvc       config.IService
	InferenceSvc inference.IService
	DisplaySvc   display.ISink
	StatusSvc    Notifier
}

// RunFlag is the externally controlled "keep going" signal of the webcam
// loop. *atomic.Bool satisfies it.
type RunFlag interface {
	Load() bool
}

type Notifier interface {
	Publish(event status.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(status.Event) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
