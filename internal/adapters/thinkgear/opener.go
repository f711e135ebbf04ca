package thinkgear

import (
	"context"

	"github.com/bnema/mindstream-cli/internal/ports"
)

// Opener dials a fresh Reader for every stream session.
type Opener struct {
	Config Config
}

var _ ports.SourceOpener = Opener{}

func (o Opener) Open(ctx context.Context) (ports.FrameSource, error) {
	reader, err := Dial(ctx, o.Config)
	if err != nil {
		return nil, err
	}
	return reader, nil
}
