package pipeline

import (
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// Camera is an open capture device. Read blocks until a frame is available
// and reports false when none could be read.
type Camera interface {
	Read(frame *gocv.Mat) bool
	Close() error
}

// CameraOpener acquires the capture device at index. When it returns a
// non-nil Camera together with an error, the caller still releases it.
type CameraOpener func(device int) (Camera, error)

// OpenDevice opens a local capture device through OpenCV.
func OpenDevice(device int) (Camera, error) {
	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		// gocv allocates the capture before trying the device.
		if webcam != nil {
			return webcam, xerrors.Errorf("device %d: %v: %w", device, err, ErrCameraOpen)
		}
		return nil, xerrors.Errorf("device %d: %v: %w", device, err, ErrCameraOpen)
	}

	if !webcam.IsOpened() {
		return webcam, xerrors.Errorf("device %d not opened: %w", device, ErrCameraOpen)
	}

	return webcam, nil
}
