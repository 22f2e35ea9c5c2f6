package pipeline

import (
	"context"

	"github.com/technosupport/fusion-pipeline/internal/data"
	"github.com/technosupport/fusion-pipeline/internal/event"
	"github.com/technosupport/fusion-pipeline/internal/realtime"
)

// ThumbnailFetcher is the vendor-facing collaborator that pulls a
// snapshot for an event from one of the area's cameras. Implementations
// live with the connector drivers; a nil result with nil error means no
// camera could produce an image. Calls are bounded by the processor's
// fetch timeout, implementations should honor ctx.
type ThumbnailFetcher interface {
	FetchThumbnail(ctx context.Context, e *event.StandardizedEvent, cameras []*data.Device) (*realtime.ThumbnailData, error)
}
