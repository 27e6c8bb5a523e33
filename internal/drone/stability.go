package drone

import (
	"context"

	"github.com/calderon/vaspdb/internal/types"
)

// StabilityClient looks up phase-stability figures for an assembled
// document against an external materials database. Lookup failures degrade
// to a warning; the document is persisted without stability data.
type StabilityClient interface {
	Stability(ctx context.Context, doc *types.RunDocument) (map[string]any, error)
}
