package ports

import (
	"context"
	"iter"

	"github.com/bnema/mindstream-cli/internal/domain"
)

// FrameSource is a single-use lazy sequence of decoded records. The
// shutdown predicate is checked once per produced record; the source releases
// its connection when iteration stops.
type FrameSource interface {
	Messages(shutdown func() bool) iter.Seq2[domain.Record, error]
}

type SourceOpener interface {
	Open(ctx context.Context) (FrameSource, error)
}

type SourceOpenerFunc func(ctx context.Context) (FrameSource, error)

func (f SourceOpenerFunc) Open(ctx context.Context) (FrameSource, error) {
	return f(ctx)
}
