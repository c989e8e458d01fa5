package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/scheduler"
)

type fakePruner struct {
	calls chan struct{}
}

func (f *fakePruner) PruneArtwork(context.Context) (int, error) {
	f.calls <- struct{}{}
	return 2, nil
}

func TestRegisterArtworkPruneTask(t *testing.T) {
	sched, err := scheduler.New(zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer sched.Stop()

	pruner := &fakePruner{calls: make(chan struct{}, 1)}
	if err := RegisterArtworkPruneTask(sched, pruner, "30 3 * * *", zerolog.Nop()); err != nil {
		t.Fatalf("RegisterArtworkPruneTask() error = %v", err)
	}

	info, err := sched.GetTask(ArtworkPruneTaskID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if info.Cron != "30 3 * * *" {
		t.Errorf("Cron = %q", info.Cron)
	}

	if err := sched.RunNow(ArtworkPruneTaskID); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	select {
	case <-pruner.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("pruner not called")
	}
}
