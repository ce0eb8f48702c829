package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fsd-go/mode"
	"github.com/khaledhikmat/fsd-go/pipeline"
	"github.com/khaledhikmat/fsd-go/service/config"
	"github.com/khaledhikmat/fsd-go/service/inference"
	"github.com/khaledhikmat/fsd-go/service/lgr"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"web":   mode.Web,
	"image": mode.Image,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			lgr.Logger.Error("error loading .env file", slog.Any("error", xerrors.New(err.Error())))
			panic("error loading .env file")
		}
	}

	modeType := "web"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
		args = args[1:]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Config service
	cfgSvc := config.NewEnv()

	logFile := lgr.Setup(lgr.Options{
		Level:      cfgSvc.GetLogLevel(),
		File:       cfgSvc.GetLogFile(),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
	})
	defer logFile.Close()

	// The detector is loaded once and shared by every pipeline. Without
	// weights there is nothing to run.
	inferenceSvc, err := inference.NewYolo8(cfgSvc)
	if err != nil {
		lgr.Logger.Error("error loading detector",
			slog.String("model", cfgSvc.GetModelPath()),
			slog.Any("error", err),
		)
		panic("error loading detector")
	}
	defer inferenceSvc.Close()

	lgr.Logger.Info("detector loaded",
		slog.String("model", cfgSvc.GetModelPath()),
		slog.Any("labels", inferenceSvc.Labels()),
	)

	// Display and status services are created by the modes that need them
	svcs := pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		InferenceSvc: inferenceSvc,
	}

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs, args)
	}()

	// Wait for cancellation or mode proc
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"fsd context cancelled",
		)

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Error(
				"fsd mode processor exited",
				slog.String("mode", modeType),
				slog.Any("error", xerrors.New(err.Error())),
			)
		}
		canxFn()
		return
	}

	lgr.Logger.Info(
		"fsd is waiting for the mode processor to exit",
	)

	// Wait in a non-blocking way for `waitOnShutdown` so the camera is
	// released before the process exits
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	select {
	case <-timer.C:
		lgr.Logger.Info(
			"fsd shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Info(
				"fsd mode processor exited",
				slog.Any("error", xerrors.New(err.Error())),
			)
		}
	}
}
