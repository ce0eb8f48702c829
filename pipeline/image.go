package pipeline

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/khaledhikmat/fsd-go/model"
	"github.com/khaledhikmat/fsd-go/service/lgr"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type ImageResult struct {
	Image      *image.RGBA
	Detections []model.Detection
	Labels     model.Labels
	Stats      model.ImageStats
}

// ImagePipeline runs one uploaded image through decode, detect, annotate
// and display conversion. No resize is applied on this path.
type ImagePipeline struct {
	svcs   ServicesFactory
	tracer trace.Tracer
}

func NewImagePipeline(svcs ServicesFactory) *ImagePipeline {
	return &ImagePipeline{
		svcs:   svcs,
		tracer: noop.NewTracerProvider().Tracer("pipeline/image"),
	}
}

func (p *ImagePipeline) WithTracer(tracer trace.Tracer) *ImagePipeline {
	p.tracer = tracer
	return p
}

// Process handles raw upload bytes. A decode failure is returned as
// ErrDecode and only concerns this call.
func (p *ImagePipeline) Process(ctx context.Context, raw []byte) (ImageResult, error) {
	_, span := p.tracer.Start(ctx, "image.process")
	defer span.End()

	start := time.Now()

	img, err := gocv.IMDecode(raw, gocv.IMReadColor)
	if err != nil {
		span.RecordError(err)
		return ImageResult{}, xerrors.Errorf("%v: %w", err, ErrDecode)
	}
	defer img.Close()

	if img.Empty() {
		span.RecordError(ErrDecode)
		return ImageResult{}, ErrDecode
	}

	detections, err := p.svcs.InferenceSvc.Detect(img, p.svcs.CfgSvc.GetConfidenceThreshold())
	if err != nil {
		span.RecordError(err)
		return ImageResult{}, xerrors.Errorf("error running detection: %w", err)
	}

	labels := p.svcs.InferenceSvc.Labels()
	if err := AnnotateInPlace(&img, detections, labels); err != nil {
		span.RecordError(err)
		return ImageResult{}, err
	}

	out, err := ToDisplay(img)
	if err != nil {
		span.RecordError(err)
		return ImageResult{}, err
	}

	stats := model.ImageStats{
		Width:      img.Cols(),
		Height:     img.Rows(),
		Detections: len(detections),
		ProcTime:   time.Since(start).Seconds(),
		Timestamp:  time.Now().Unix(),
	}

	lgr.Logger.Info("image processed",
		slog.Int("width", stats.Width),
		slog.Int("height", stats.Height),
		slog.Int("detections", stats.Detections),
		slog.Float64("procTime", stats.ProcTime),
	)

	return ImageResult{
		Image:      out,
		Detections: detections,
		Labels:     labels,
		Stats:      stats,
	}, nil
}
