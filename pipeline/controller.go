package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/khaledhikmat/fsd-go/model"
)

type WebcamStatus struct {
	State     model.WebcamState  `json:"state"`
	Session   string             `json:"session"`
	Frames    int                `json:"frames"`
	Running   bool               `json:"running"`
	LastError string             `json:"lastError,omitempty"`
	LastStats *model.WebcamStats `json:"lastStats,omitempty"`
}

// WebcamController maps the user's start/stop toggle onto the webcam loop.
// The loop runs on a single worker goroutine that never outlives Stop.
type WebcamController struct {
	webcam  *Webcam
	running atomic.Bool

	mu        sync.Mutex
	done      chan struct{}
	lastErr   error
	lastStats *model.WebcamStats
}

func NewWebcamController(webcam *Webcam) *WebcamController {
	return &WebcamController{
		webcam: webcam,
	}
}

// Start turns the run flag on and launches the loop. It reports false when
// a loop is already active.
func (c *WebcamController) Start(canx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		select {
		case <-c.done:
		default:
			return false
		}
	}

	c.lastErr = nil
	c.running.Store(true)
	done := make(chan struct{})
	c.done = done

	go func() {
		defer close(done)

		stats, err := c.webcam.Run(canx, &c.running)

		c.mu.Lock()
		c.running.Store(false)
		c.lastErr = err
		c.lastStats = &stats
		c.mu.Unlock()
	}()

	return true
}

// Stop turns the run flag off and waits for the in-flight iteration to
// finish and the camera to be released.
func (c *WebcamController) Stop() {
	c.running.Store(false)

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Wait blocks until the current loop, if any, has returned.
func (c *WebcamController) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (c *WebcamController) Status() WebcamStatus {
	state, session, frames := c.webcam.State()

	c.mu.Lock()
	defer c.mu.Unlock()

	st := WebcamStatus{
		State:     state,
		Session:   session,
		Frames:    frames,
		Running:   c.running.Load(),
		LastStats: c.lastStats,
	}
	switch {
	case errors.Is(c.lastErr, ErrCapture):
		st.LastError = CaptureFailedMessage
	case c.lastErr != nil:
		st.LastError = c.lastErr.Error()
	}
	return st
}
