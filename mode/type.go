package mode

import (
	"context"

	"github.com/khaledhikmat/fsd-go/pipeline"
)

// Processor runs one application mode until canxCtx is cancelled or the
// mode has nothing left to do. svcs carries the config and the already
// loaded detector; modes add the display and status services they need.
type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory, args []string) error

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}
