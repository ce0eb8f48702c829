package model

import (
	"fmt"
	"image"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Detection is one predicted object instance. Rect coordinates are relative
// to the exact image the detection was inferred on.
type Detection struct {
	Rect       image.Rectangle `json:"rect"`
	ClassID    int             `json:"classId"`
	Confidence float32         `json:"confidence"`
}

type WebcamState string

const (
	WebcamIdle    WebcamState = "idle"
	WebcamAcquire WebcamState = "acquire"
	WebcamRunning WebcamState = "running"
	WebcamStop    WebcamState = "stop"
)

type WebcamStats struct {
	Session     string  `json:"session"`
	Device      int     `json:"device"`
	FPS         int     `json:"fps"`
	Frames      int     `json:"frames"`
	Errors      int     `json:"errors"`
	Uptime      int64   `json:"uptime"`
	AvgProcTime float64 `json:"avgProcTime"`
	Timestamp   int64   `json:"timestamp"`
}

type ImageStats struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Detections int     `json:"detections"`
	ProcTime   float64 `json:"procTime"`
	Timestamp  int64   `json:"timestamp"`
}

// Labels maps a class id to its human-readable name. It is fixed for the
// lifetime of the loaded detector.
type Labels []string

func (l Labels) Name(classID int) string {
	if classID < 0 || classID >= len(l) {
		return fmt.Sprintf("class%d", classID)
	}
	return l[classID]
}
