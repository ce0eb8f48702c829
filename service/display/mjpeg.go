package display

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"
)

const boundary = "frame"

// MJPEGSink publishes frames as a multipart/x-mixed-replace stream. A viewer
// gets the latest frame as soon as it connects and then every newer frame it
// can keep up with; frames it was too slow for are skipped.
type MJPEGSink struct {
	quality int
	frames  atomic.Int64

	mu      sync.Mutex
	latest  []byte
	updated chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func NewMJPEG(quality int) *MJPEGSink {
	return &MJPEGSink{
		quality: quality,
		updated: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (s *MJPEGSink) Publish(img image.Image) error {
	// every frame gets its own buffer; viewers may still be writing the last one
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return xerrors.Errorf("error encoding frame: %w", err)
	}

	s.mu.Lock()
	s.latest = buf.Bytes()
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()

	s.frames.Add(1)
	return nil
}

// Frames is the number of frames published so far.
func (s *MJPEGSink) Frames() int64 {
	return s.frames.Load()
}

// Close ends every open viewer stream. Publish keeps working afterwards but
// nobody is served.
func (s *MJPEGSink) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func (s *MJPEGSink) Handler() http.Handler {
	return s
}

func (s *MJPEGSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		s.mu.Lock()
		frame, updated := s.latest, s.updated
		s.mu.Unlock()

		if frame != nil {
			if err := writePart(w, frame); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		select {
		case <-updated:
		case <-r.Context().Done():
			return
		case <-s.closed:
			return
		}
	}
}

func writePart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
