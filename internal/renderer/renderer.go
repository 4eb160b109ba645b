package renderer

import (
	"context"
	"errors"

	"github.com/clinicore/pdfjobs/internal/domain"
)

// ErrRenderFailed wraps any renderer-side failure. Workers store only a
// generic message on the job row; the wrapped detail stays in logs.
var ErrRenderFailed = errors.New("document rendering failed")

// Renderer turns a loaded clinical document into PDF bytes. The headless
// rendering call behind it is opaque and potentially slow; callers bound it
// with a context deadline when configured to.
type Renderer interface {
	Render(ctx context.Context, document domain.RenderDocument) ([]byte, error)
}
