package sim

import (
	"context"
	"time"

	"northpole/internal/domain"
)

// Sim stands in for an elf building a toy: it waits the job's simulated
// minutes, each lasting Unit of wall time. A zero Unit returns at once.
type Sim struct {
	Unit time.Duration
}

func (h Sim) Handle(ctx context.Context, job domain.Job) error {
	d := time.Duration(job.BuildMinutes() * float64(h.Unit))
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
