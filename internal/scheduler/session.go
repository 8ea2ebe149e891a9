package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/hh-toucher/internal/headhunter"
)

// Session is an authorized API session for one token.
type Session interface {
	TouchResume(ctx context.Context, id string) (*headhunter.TouchResult, error)
	Close()
}

// Connector opens a session. It fails with headhunter.ErrAuth when the token
// is not usable anymore.
type Connector func(ctx context.Context, token string) (Session, error)

// HeadHunter returns a Connector backed by the real API client.
func HeadHunter(logger *zap.Logger, opts *headhunter.Options) Connector {
	return func(ctx context.Context, token string) (Session, error) {
		client, err := headhunter.New(ctx, logger, token, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
