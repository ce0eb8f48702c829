package mode

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/khaledhikmat/fsd-go/model"
	"github.com/khaledhikmat/fsd-go/pipeline"
	"github.com/khaledhikmat/fsd-go/service/config"
	"github.com/khaledhikmat/fsd-go/service/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageServices() pipeline.ServicesFactory {
	return pipeline.ServicesFactory{
		CfgSvc: config.NewFromMap(nil),
		InferenceSvc: inference.NewFake(model.Labels{"fire", "smoke"},
			model.Detection{Rect: image.Rect(10, 20, 60, 80), ClassID: 1, Confidence: 0.66},
		),
	}
}

func TestImageModeWritesAnnotatedFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scene.png")
	require.NoError(t, os.WriteFile(input, pngBytes(t, 200, 150), 0644))

	require.NoError(t, Image(context.Background(), imageServices(), []string{input}))

	f, err := os.Open(filepath.Join(dir, "scene_detected.jpg"))
	require.NoError(t, err)
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestImageModeErrors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, Image(context.Background(), imageServices(), nil))
	assert.Error(t, Image(context.Background(), imageServices(), []string{filepath.Join(dir, "clip.mp4")}))
	assert.Error(t, Image(context.Background(), imageServices(), []string{filepath.Join(dir, "missing.png")}))

	broken := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(broken, []byte("nope"), 0644))
	err := Image(context.Background(), imageServices(), []string{broken})
	assert.ErrorIs(t, err, pipeline.ErrDecode)
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	result := pipeline.ImageResult{
		Labels: model.Labels{"fire", "smoke"},
		Detections: []model.Detection{
			{Rect: image.Rect(100, 100, 200, 200), ClassID: 0, Confidence: 0.92},
		},
		Stats: model.ImageStats{Width: 800, Height: 600},
	}

	var buf bytes.Buffer
	printSummary(&buf, result, "out.jpg")

	assert.Contains(t, buf.String(), "1 detection(s) in 800x600 image -> out.jpg")
	assert.Contains(t, buf.String(), "fire 0.92")
	assert.Contains(t, buf.String(), "[100,100 200,200]")
}
