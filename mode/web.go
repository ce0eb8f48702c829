package mode

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khaledhikmat/fsd-go/pipeline"
	"github.com/khaledhikmat/fsd-go/service/display"
	"github.com/khaledhikmat/fsd-go/service/lgr"
	"github.com/khaledhikmat/fsd-go/service/status"
	"golang.org/x/xerrors"
)

//go:embed static/index.html
var staticFiles embed.FS

type webServer struct {
	svcs       pipeline.ServicesFactory
	images     *pipeline.ImagePipeline
	controller *pipeline.WebcamController
	sink       *display.MJPEGSink
	hub        *status.Hub
	canx       context.Context
}

// Web serves the detection page: single image uploads and the webcam
// stream share the detector loaded at startup.
func Web(canxCtx context.Context, svcs pipeline.ServicesFactory, _ []string) error {
	sink := display.NewMJPEG(svcs.CfgSvc.GetJPEGQuality())
	hub := status.NewHub()
	go hub.Run(canxCtx)

	svcs.DisplaySvc = sink
	svcs.StatusSvc = hub

	controller := pipeline.NewWebcamController(pipeline.NewWebcam(svcs, pipeline.OpenDevice))
	defer controller.Stop()

	srv := &webServer{
		svcs:       svcs,
		images:     pipeline.NewImagePipeline(svcs),
		controller: controller,
		sink:       sink,
		hub:        hub,
		canx:       canxCtx,
	}

	httpServer := &http.Server{
		Addr:              svcs.CfgSvc.GetHTTPAddress(),
		Handler:           srv.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		lgr.Logger.Info("web server listening", slog.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-canxCtx.Done():
		lgr.Logger.Info("web server context cancelled")
	case err := <-serverErr:
		if err != nil {
			return xerrors.Errorf("web server failed: %w", err)
		}
	}

	// Release the camera before tearing the server down. MJPEG viewers
	// never go idle on their own.
	controller.Stop()
	sink.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lgr.Logger.Warn("web server shutdown timed out, closing connections", slog.Any("error", err))
		return httpServer.Close()
	}

	return nil
}

func (s *webServer) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/", s.index)
	router.POST("/api/detect", s.detect)
	router.GET("/api/webcam", s.webcamStatus)
	router.POST("/api/webcam/start", s.webcamStart)
	router.POST("/api/webcam/stop", s.webcamStop)
	router.GET("/stream", gin.WrapH(s.sink.Handler()))
	router.GET("/ws", gin.WrapH(s.hub))

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// streaming endpoints would log once per connection lifetime
		if c.FullPath() == "/stream" || c.FullPath() == "/ws" {
			return
		}

		lgr.Logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func (s *webServer) index(c *gin.Context) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

type detectionResponse struct {
	Label      string  `json:"label"`
	ClassID    int     `json:"classId"`
	Confidence float32 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

// detect runs one upload through the single image pipeline. The annotated
// image is returned as JPEG, or as JSON when format=json.
func (s *webServer) detect(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.svcs.CfgSvc.GetMaxUploadBytes())

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		code, msg := uploadError(err, "missing image upload")
		c.JSON(code, gin.H{"error": msg})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only jpg, jpeg and png images are accepted"})
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		lgr.Logger.Warn("error reading upload", slog.String("file", header.Filename), slog.Any("error", err))
		code, msg := uploadError(err, "the upload could not be read")
		c.JSON(code, gin.H{"error": msg})
		return
	}

	result, err := s.images.Process(c.Request.Context(), raw)
	if errors.Is(err, pipeline.ErrDecode) {
		lgr.Logger.Warn("upload could not be decoded", slog.String("file", header.Filename), slog.Any("error", err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "the uploaded file could not be decoded as an image"})
		return
	}
	if err != nil {
		lgr.Logger.Error("error processing upload", slog.String("file", header.Filename), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	detections := make([]detectionResponse, 0, len(result.Detections))
	for _, d := range result.Detections {
		detections = append(detections, detectionResponse{
			Label:      result.Labels.Name(d.ClassID),
			ClassID:    d.ClassID,
			Confidence: d.Confidence,
			Box:        [4]int{d.Rect.Min.X, d.Rect.Min.Y, d.Rect.Max.X, d.Rect.Max.Y},
		})
	}

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{
			"detections": detections,
			"stats":      result.Stats,
		})
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, result.Image, &jpeg.Options{Quality: s.svcs.CfgSvc.GetJPEGQuality()}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Detections", strconv.Itoa(len(detections)))
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

// uploadError maps a failure to receive the upload body onto a response.
// Only an exceeded body limit is a 413.
func uploadError(err error, msg string) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "upload too large"
	}
	return http.StatusBadRequest, msg
}

func (s *webServer) webcamStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *webServer) webcamStart(c *gin.Context) {
	if !s.controller.Start(s.canx) {
		c.JSON(http.StatusConflict, s.controller.Status())
		return
	}
	c.JSON(http.StatusAccepted, s.controller.Status())
}

func (s *webServer) webcamStop(c *gin.Context) {
	s.controller.Stop()
	c.JSON(http.StatusOK, s.controller.Status())
}
