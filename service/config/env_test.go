package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	svc := NewFromMap(nil)

	assert.Equal(t, "trainmodel.onnx", svc.GetModelPath())
	assert.Equal(t, "data.yaml", svc.GetLabelsPath())
	assert.Equal(t, float32(0.4), svc.GetConfidenceThreshold())
	assert.Equal(t, 0, svc.GetCameraDevice())
	assert.Equal(t, 640, svc.GetFrameWidth())
	assert.Equal(t, 480, svc.GetFrameHeight())
	assert.Equal(t, 640, svc.GetModelInputSize())
	assert.Equal(t, int64(20<<20), svc.GetMaxUploadBytes())
	assert.Equal(t, ":8501", svc.GetHTTPAddress())
}

func TestOverrides(t *testing.T) {
	svc := NewFromMap(map[string]string{
		"MODEL_PATH":           "/models/fire.onnx",
		"CONFIDENCE_THRESHOLD": "0.65",
		"CAMERA_DEVICE":        "2",
		"FRAME_WIDTH":          "320",
		"MAX_UPLOAD_MB":        "1",
		"LOG_LEVEL":            "debug",
	})

	assert.Equal(t, "/models/fire.onnx", svc.GetModelPath())
	assert.InDelta(t, 0.65, svc.GetConfidenceThreshold(), 1e-6)
	assert.Equal(t, 2, svc.GetCameraDevice())
	assert.Equal(t, 320, svc.GetFrameWidth())
	assert.Equal(t, int64(1<<20), svc.GetMaxUploadBytes())
	assert.Equal(t, "debug", svc.GetLogLevel())
}

func TestMalformedValuesFallBack(t *testing.T) {
	svc := NewFromMap(map[string]string{
		"CONFIDENCE_THRESHOLD": "1.5",
		"NMS_THRESHOLD":        "abc",
		"FRAME_HEIGHT":         "-10",
		"JPEG_QUALITY":         "250",
		"CAMERA_DEVICE":        "x",
	})

	assert.Equal(t, DefaultConfidenceThreshold, svc.GetConfidenceThreshold())
	assert.Equal(t, DefaultNMSThreshold, svc.GetNMSThreshold())
	assert.Equal(t, DefaultFrameHeight, svc.GetFrameHeight())
	assert.Equal(t, DefaultJPEGQuality, svc.GetJPEGQuality())
	assert.Equal(t, DefaultCameraDevice, svc.GetCameraDevice())
}
