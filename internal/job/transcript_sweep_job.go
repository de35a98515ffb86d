package job

import (
	"context"
	"time"
)

type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// TranscriptSweepJob drops in-memory transcripts that have been idle too long.
type TranscriptSweepJob struct {
	store Sweeper
	idle  time.Duration
}

func NewTranscriptSweepJob(store Sweeper, idle time.Duration) *TranscriptSweepJob {
	return &TranscriptSweepJob{store: store, idle: idle}
}

func (j *TranscriptSweepJob) Name() string {
	return "transcript_sweep"
}

func (j *TranscriptSweepJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	idle := j.idle
	if idle <= 0 {
		idle = 2 * time.Hour
	}
	j.store.Sweep(ctx, idle)
	return nil
}
