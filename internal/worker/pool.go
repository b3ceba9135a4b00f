package worker

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"northpole/internal/domain"
)

// Handler performs one build. It should return promptly once ctx is done.
type Handler interface {
	Handle(ctx context.Context, job domain.Job) error
}

// Pool runs every elf's assigned list as its own timeline.
type Pool struct {
	handler Handler
	size    int
}

// NewPool limits the number of elves building at once to size; 0 means no limit.
// Simulated timestamps do not depend on the limit.
func NewPool(handler Handler, size int) *Pool {
	return &Pool{handler: handler, size: size}
}

// Run starts one goroutine per elf and returns once every timeline is done.
// Events of one elf are sent in order; events of different elves interleave
// freely. Cancelling ctx stops every timeline and Run returns the cause.
// Run does not close events.
func (p *Pool) Run(ctx context.Context, elves []domain.Elf, events chan<- domain.BuildEvent) error {
	g, ctx := errgroup.WithContext(ctx)
	if p.size > 0 {
		g.SetLimit(p.size)
	}
	for _, e := range elves {
		if len(e.Assigned) == 0 {
			continue
		}
		name, jobs := e.Name, append([]domain.Job(nil), e.Assigned...)
		g.Go(func() error {
			return p.timeline(ctx, name, jobs, events)
		})
	}
	return g.Wait()
}

func (p *Pool) timeline(ctx context.Context, elf string, jobs []domain.Job, events chan<- domain.BuildEvent) error {
	clock := 0.0
	for _, j := range jobs {
		if err := emit(ctx, events, domain.BuildEvent{Elf: elf, OrderID: j.OrderID, Toy: j.Toy, Kind: domain.EventStart, At: clock}); err != nil {
			return err
		}
		if err := p.handler.Handle(ctx, j); err != nil {
			log.Warn().Err(err).Str("elf", elf).Str("toy", j.Toy).Msg("build interrupted")
			return err
		}
		clock += j.BuildMinutes()
		if err := emit(ctx, events, domain.BuildEvent{Elf: elf, OrderID: j.OrderID, Toy: j.Toy, Kind: domain.EventFinish, At: clock}); err != nil {
			return err
		}
	}
	log.Debug().Str("elf", elf).Int("jobs", len(jobs)).Float64("minutes", clock).Msg("elf timeline done")
	return nil
}

func emit(ctx context.Context, events chan<- domain.BuildEvent, ev domain.BuildEvent) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Simulate runs the pool and collects the whole event log.
func (p *Pool) Simulate(ctx context.Context, elves []domain.Elf) ([]domain.BuildEvent, error) {
	ch := make(chan domain.BuildEvent, 64)
	var err error
	go func() {
		err = p.Run(ctx, elves, ch)
		close(ch)
	}()
	var out []domain.BuildEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out, err
}
