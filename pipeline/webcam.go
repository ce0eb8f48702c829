package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/fsd-go/model"
	"github.com/khaledhikmat/fsd-go/service/lgr"
	"github.com/khaledhikmat/fsd-go/service/status"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

const webcamSource = "webcam"

// Webcam owns the capture loop. One Run call is one Acquire -> Running ->
// Stop cycle; the camera it opens never outlives that call.
type Webcam struct {
	svcs   ServicesFactory
	open   CameraOpener
	notify Notifier
	tracer trace.Tracer

	mu      sync.Mutex
	state   model.WebcamState
	session string
	frames  int
}

func NewWebcam(svcs ServicesFactory, open CameraOpener) *Webcam {
	if open == nil {
		open = OpenDevice
	}

	return &Webcam{
		svcs:   svcs,
		open:   open,
		notify: notifierOrNop(svcs.StatusSvc),
		tracer: noop.NewTracerProvider().Tracer("pipeline/webcam"),
		state:  model.WebcamIdle,
	}
}

func (w *Webcam) WithTracer(tracer trace.Tracer) *Webcam {
	w.tracer = tracer
	return w
}

// State returns the current state, session id and frames published in the
// current (or last) session.
func (w *Webcam) State() (model.WebcamState, string, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.session, w.frames
}

// Run blocks while running reports true. The flag and canx are looked at
// only between iterations: once a frame is captured it is always carried
// through to the display. The camera is released exactly once on every
// exit path and Run always returns with the loop Idle.
func (w *Webcam) Run(canx context.Context, running RunFlag) (stats model.WebcamStats, err error) {
	session := uuid.NewString()
	device := w.svcs.CfgSvc.GetCameraDevice()
	size := image.Pt(w.svcs.CfgSvc.GetFrameWidth(), w.svcs.CfgSvc.GetFrameHeight())
	threshold := w.svcs.CfgSvc.GetConfidenceThreshold()

	stats = model.WebcamStats{
		Session: session,
		Device:  device,
	}
	beginTime := time.Now()
	var totalProcTime time.Duration

	w.mu.Lock()
	w.session = session
	w.frames = 0
	w.mu.Unlock()

	defer func() {
		uptime := time.Since(beginTime)
		stats.Uptime = int64(uptime.Seconds())
		if uptime > 0 {
			stats.FPS = int(float64(stats.Frames) / uptime.Seconds())
		}
		if stats.Frames > 0 {
			stats.AvgProcTime = totalProcTime.Seconds() / float64(stats.Frames)
		}
		stats.Timestamp = time.Now().Unix()

		w.setState(model.WebcamIdle, session)
		lgr.Logger.Info("webcam session ended",
			slog.String("session", session),
			slog.Int("frames", stats.Frames),
			slog.Int("errors", stats.Errors),
			slog.Int("fps", stats.FPS),
			slog.Float64("avgProcTime", stats.AvgProcTime),
		)
	}()

	w.setState(model.WebcamAcquire, session)
	camera, err := w.open(device)
	if camera != nil {
		defer func() {
			w.setState(model.WebcamStop, session)
			if closeErr := camera.Close(); closeErr != nil {
				lgr.Logger.Warn("error releasing camera", slog.Int("device", device), slog.Any("error", closeErr))
			}
		}()
	}
	if err != nil {
		stats.Errors++
		w.fail(session, err, "error opening camera %d", device)
		return stats, err
	}

	lgr.Logger.Info("webcam session starting...",
		slog.String("session", session),
		slog.Int("device", device),
		slog.Any("size", size),
		slog.String("openCV", gocv.Version()),
	)
	w.setState(model.WebcamRunning, session)

	frame := gocv.NewMat()
	defer frame.Close()
	resized := gocv.NewMat()
	defer resized.Close()

	for running.Load() && canx.Err() == nil {
		if ok := camera.Read(&frame); !ok || frame.Empty() {
			stats.Errors++
			w.fail(session, ErrCapture, CaptureFailedMessage)
			return stats, ErrCapture
		}

		startProc := time.Now()
		if procErr := w.process(canx, frame, &resized, size, threshold, stats.Frames); procErr != nil {
			stats.Errors++
			w.fail(session, procErr, "error processing frame %d", stats.Frames)
			return stats, procErr
		}
		totalProcTime += time.Since(startProc)
		stats.Frames++

		w.mu.Lock()
		w.frames = stats.Frames
		w.mu.Unlock()
	}

	return stats, nil
}

// process carries one captured frame through resize, detect, annotate and
// publish. Detections are drawn on the same resized Mat they came from.
func (w *Webcam) process(canx context.Context, frame gocv.Mat, resized *gocv.Mat, size image.Point, threshold float32, index int) error {
	_, span := w.tracer.Start(canx, "webcam.frame", trace.WithAttributes(attribute.Int("frame", index)))
	defer span.End()

	if err := gocv.Resize(frame, resized, size, 0, 0, gocv.InterpolationLinear); err != nil {
		span.RecordError(err)
		return xerrors.Errorf("error resizing frame: %w", err)
	}

	detections, err := w.svcs.InferenceSvc.Detect(*resized, threshold)
	if err != nil {
		span.RecordError(err)
		return xerrors.Errorf("error running detection: %w", err)
	}

	if err := AnnotateInPlace(resized, detections, w.svcs.InferenceSvc.Labels()); err != nil {
		span.RecordError(err)
		return err
	}

	out, err := ToDisplay(*resized)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := w.svcs.DisplaySvc.Publish(out); err != nil {
		span.RecordError(err)
		return xerrors.Errorf("error publishing frame: %w", err)
	}

	span.SetAttributes(attribute.Int("detections", len(detections)))
	return nil
}

func (w *Webcam) setState(state model.WebcamState, session string) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()

	w.notify.Publish(status.Event{
		Type:    status.EventState,
		Source:  webcamSource,
		State:   string(state),
		Session: session,
	})
}

func (w *Webcam) fail(session string, err error, messagef string, args ...interface{}) {
	customErr := model.GenError("webcam_loop", err, map[string]interface{}{"session": session}, messagef, args...)

	lgr.Logger.Error(customErr.Message,
		slog.String("session", session),
		slog.Any("error", err),
	)

	w.notify.Publish(status.Event{
		Type:    status.EventError,
		Source:  webcamSource,
		Session: session,
		Message: customErr.Message,
	})
}
