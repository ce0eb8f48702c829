package config

import (
	"os"
	"strconv"
)

const (
	DefaultModelPath           = "trainmodel.onnx"
	DefaultLabelsPath          = "data.yaml"
	DefaultModelInputSize      = 640
	DefaultConfidenceThreshold = float32(0.4)
	DefaultNMSThreshold        = float32(0.45)
	DefaultCameraDevice        = 0
	DefaultFrameWidth          = 640
	DefaultFrameHeight         = 480
	DefaultHTTPAddress         = ":8501"
	DefaultMaxUploadMB         = 20
	DefaultJPEGQuality         = 90
	DefaultLogLevel            = "info"
	DefaultLogFile             = "fsd.log"
	DefaultModeMaxShutdownTime = 5
)

type envService struct {
	lookup func(string) string
}

// NewEnv returns a config service backed by process environment variables.
// Unset or malformed values fall back to the package defaults.
func NewEnv() IService {
	return &envService{
		lookup: os.Getenv,
	}
}

// NewFromMap is NewEnv over a fixed set of values instead of the process
// environment.
func NewFromMap(values map[string]string) IService {
	return &envService{
		lookup: func(key string) string {
			return values[key]
		},
	}
}

func (svc *envService) GetModeMaxShutdownTime() int {
	return svc.getInt("MODE_MAX_SHUTDOWN_TIME", DefaultModeMaxShutdownTime)
}

func (svc *envService) GetModelPath() string {
	return svc.get("MODEL_PATH", DefaultModelPath)
}

func (svc *envService) GetLabelsPath() string {
	return svc.get("LABELS_PATH", DefaultLabelsPath)
}

func (svc *envService) GetModelInputSize() int {
	return svc.getInt("MODEL_INPUT_SIZE", DefaultModelInputSize)
}

func (svc *envService) GetConfidenceThreshold() float32 {
	v := svc.getFloat("CONFIDENCE_THRESHOLD", DefaultConfidenceThreshold)
	if v < 0 || v > 1 {
		return DefaultConfidenceThreshold
	}
	return v
}

func (svc *envService) GetNMSThreshold() float32 {
	v := svc.getFloat("NMS_THRESHOLD", DefaultNMSThreshold)
	if v <= 0 || v > 1 {
		return DefaultNMSThreshold
	}
	return v
}

func (svc *envService) GetCameraDevice() int {
	v := svc.getInt("CAMERA_DEVICE", DefaultCameraDevice)
	if v < 0 {
		return DefaultCameraDevice
	}
	return v
}

func (svc *envService) GetFrameWidth() int {
	return svc.getInt("FRAME_WIDTH", DefaultFrameWidth)
}

func (svc *envService) GetFrameHeight() int {
	return svc.getInt("FRAME_HEIGHT", DefaultFrameHeight)
}

func (svc *envService) GetHTTPAddress() string {
	return svc.get("HTTP_ADDRESS", DefaultHTTPAddress)
}

func (svc *envService) GetMaxUploadBytes() int64 {
	return int64(svc.getInt("MAX_UPLOAD_MB", DefaultMaxUploadMB)) << 20
}

func (svc *envService) GetJPEGQuality() int {
	v := svc.getInt("JPEG_QUALITY", DefaultJPEGQuality)
	if v > 100 {
		return DefaultJPEGQuality
	}
	return v
}

func (svc *envService) GetLogLevel() string {
	return svc.get("LOG_LEVEL", DefaultLogLevel)
}

func (svc *envService) GetLogFile() string {
	return svc.get("LOG_FILE", DefaultLogFile)
}

func (svc *envService) get(key, defaultValue string) string {
	if value := svc.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt only accepts positive values, zero and negatives mean "use the default".
func (svc *envService) getInt(key string, defaultValue int) int {
	if value := svc.lookup(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func (svc *envService) getFloat(key string, defaultValue float32) float32 {
	if value := svc.lookup(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}
