package mode

import (
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/khaledhikmat/fsd-go/pipeline"
	"github.com/khaledhikmat/fsd-go/service/lgr"
	"golang.org/x/xerrors"
)

// Image runs the single image pipeline over a file: `image <in> [out]`.
// The annotated result defaults to <in>_detected.jpg.
func Image(canxCtx context.Context, svcs pipeline.ServicesFactory, args []string) error {
	if len(args) < 1 {
		return xerrors.New("usage: image <input> [output]")
	}

	input := args[0]
	ext := strings.ToLower(filepath.Ext(input))
	if !allowedExtensions[ext] {
		return xerrors.Errorf("%s: only jpg, jpeg and png images are accepted", input)
	}

	output := strings.TrimSuffix(input, filepath.Ext(input)) + "_detected.jpg"
	if len(args) > 1 {
		output = args[1]
	}

	raw, err := os.ReadFile(input)
	if err != nil {
		return xerrors.Errorf("error reading %s: %w", input, err)
	}

	result, err := pipeline.NewImagePipeline(svcs).Process(canxCtx, raw)
	if err != nil {
		return xerrors.Errorf("%s: %w", input, err)
	}

	f, err := os.Create(output)
	if err != nil {
		return xerrors.Errorf("error creating %s: %w", output, err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, result.Image, &jpeg.Options{Quality: svcs.CfgSvc.GetJPEGQuality()}); err != nil {
		return xerrors.Errorf("error writing %s: %w", output, err)
	}

	lgr.Logger.Info("annotated image written",
		slog.String("input", input),
		slog.String("output", output),
		slog.Int("detections", len(result.Detections)),
	)

	printSummary(os.Stdout, result, output)
	return nil
}

func printSummary(w io.Writer, result pipeline.ImageResult, output string) {
	header := color.New(color.Bold)
	fire := color.New(color.FgRed, color.Bold)
	other := color.New(color.FgYellow)

	header.Fprintf(w, "%d detection(s) in %dx%d image -> %s\n",
		len(result.Detections), result.Stats.Width, result.Stats.Height, output)

	for _, d := range result.Detections {
		c := other
		if result.Labels.Name(d.ClassID) == "fire" {
			c = fire
		}
		c.Fprintf(w, "  %-24s", pipeline.Label(result.Labels, d))
		fmt.Fprintf(w, " [%d,%d %d,%d]\n", d.Rect.Min.X, d.Rect.Min.Y, d.Rect.Max.X, d.Rect.Max.Y)
	}
}
