package config

type IService interface {
	GetModeMaxShutdownTime() int

	// Detector
	GetModelPath() string
	GetLabelsPath() string
	GetModelInputSize() int
	GetConfidenceThreshold() float32
	GetNMSThreshold() float32

	// Webcam loop
	GetCameraDevice() int
	GetFrameWidth() int
	GetFrameHeight() int

	// Host runtime
	GetHTTPAddress() string
	GetMaxUploadBytes() int64
	GetJPEGQuality() int

	// Logging
	GetLogLevel() string
	GetLogFile() string
}
