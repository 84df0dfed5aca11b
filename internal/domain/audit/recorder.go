package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Recorder persists audit entries for mutating operations. The lifecycle
// engine calls it exactly once per applied transition.
//
// Implementations choose how write failures relate to the primary
// operation: BestEffort swallows them, Strict propagates them.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// bestEffort logs and swallows append failures so a broken audit store
// never blocks or rolls back a state transition. This is a documented
// trade-off; swap in NewStrict where audit loss is unacceptable.
type bestEffort struct {
	repo   Repository
	logger zerolog.Logger
}

// NewBestEffort returns a fire-and-forget Recorder.
func NewBestEffort(repo Repository, logger zerolog.Logger) Recorder {
	return &bestEffort{repo: repo, logger: logger}
}

func (r *bestEffort) Record(ctx context.Context, e Entry) error {
	if err := r.repo.Append(ctx, &e); err != nil {
		r.logger.Error().
			Err(err).
			Str("action", e.Action).
			Str("resource_type", e.ResourceType).
			Str("resource_id", e.ResourceID.String()).
			Str("actor", e.ActorName).
			Msg("audit append failed; entry dropped")
	}
	return nil
}

// strict propagates append failures to the caller.
type strict struct {
	repo Repository
}

// NewStrict returns a Recorder whose failures surface to the caller.
func NewStrict(repo Repository) Recorder {
	return &strict{repo: repo}
}

func (r *strict) Record(ctx context.Context, e Entry) error {
	return r.repo.Append(ctx, &e)
}
