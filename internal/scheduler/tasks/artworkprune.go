// Package tasks registers the maintenance tasks run by the scheduler.
package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/scheduler"
)

const ArtworkPruneTaskID = "artwork-prune"

// ArtworkPruner removes cached artwork no catalog item references.
type ArtworkPruner interface {
	PruneArtwork(ctx context.Context) (int, error)
}

// RegisterArtworkPruneTask registers the artwork cache cleanup task.
func RegisterArtworkPruneTask(sched *scheduler.Scheduler, pruner ArtworkPruner, cron string, logger zerolog.Logger) error {
	log := logger.With().Str("task", ArtworkPruneTaskID).Logger()
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ArtworkPruneTaskID,
		Name:        "Artwork Prune",
		Description: "Deletes cached artwork that no catalog item references",
		Cron:        cron,
		Func: func(ctx context.Context) error {
			removed, err := pruner.PruneArtwork(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("removed", removed).Msg("Pruned artwork cache")
			return nil
		},
	})
}
