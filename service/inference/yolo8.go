package inference

import (
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/khaledhikmat/fsd-go/model"
	"github.com/khaledhikmat/fsd-go/service/config"
	"github.com/khaledhikmat/fsd-go/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type yolo8Service struct {
	// WARNING: net is not thread-safe!!!
	mu  sync.Mutex
	net gocv.Net

	labels       model.Labels
	inputSize    int
	nmsThreshold float32
}

// NewYolo8 loads an ONNX export of a YOLOv8 detector together with its
// class label table. It is meant to be called once at startup and the
// returned service shared by every pipeline.
func NewYolo8(cfgSvc config.IService) (IService, error) {
	modelPath := cfgSvc.GetModelPath()
	if _, err := os.Stat(modelPath); err != nil {
		return nil, xerrors.Errorf("%s: %w", modelPath, ErrModelNotFound)
	}

	labels, err := LoadLabels(cfgSvc.GetLabelsPath())
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, xerrors.Errorf("%s: %w", modelPath, ErrModelLoad)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, xerrors.Errorf("error setting backend: %w", err)
	}

	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, xerrors.Errorf("error setting target: %w", err)
	}

	lgr.Logger.Info("yolo8 detector loaded",
		slog.String("model", modelPath),
		slog.Any("labels", labels),
		slog.String("openCV", gocv.Version()),
	)

	return &yolo8Service{
		net:          net,
		labels:       labels,
		inputSize:    cfgSvc.GetModelInputSize(),
		nmsThreshold: cfgSvc.GetNMSThreshold(),
	}, nil
}

func (svc *yolo8Service) Labels() model.Labels {
	labels := make(model.Labels, len(svc.labels))
	copy(labels, svc.labels)
	return labels
}

func (svc *yolo8Service) Detect(img gocv.Mat, threshold float32) ([]model.Detection, error) {
	if img.Empty() {
		return nil, ErrEmptyImage
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(svc.inputSize, svc.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.net.SetInput(blob, "")

	output := svc.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[1] != 4+len(svc.labels) {
		return nil, xerrors.Errorf("unexpected DNN output dims %v for %d classes", dims, len(svc.labels))
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, xerrors.Errorf("error reading DNN output: %w", err)
	}

	scaleX := float32(img.Cols()) / float32(svc.inputSize)
	scaleY := float32(img.Rows()) / float32(svc.inputSize)

	return Decode(data, Head{Attrs: dims[1], Anchors: dims[2]}, scaleX, scaleY, threshold, svc.nmsThreshold), nil
}

func (svc *yolo8Service) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.net.Close()
}
