package ports

import (
	"context"

	"github.com/bnema/mindstream-cli/internal/domain"
)

type ProfileRepository interface {
	Get(ctx context.Context) (domain.Profile, error)
	Save(ctx context.Context, profile domain.Profile) error
}

type SessionRepository interface {
	// Save persists the session and returns where it was written.
	Save(ctx context.Context, session domain.Session) (string, error)
}
