package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Passer is the part of a workshop the service drives.
type Passer interface {
	Assign() Result
	// StartShift resets capacity and assigns as one step.
	StartShift() Result
}

// Plan is a recurring pass. With Reset set, elves start a fresh shift first.
type Plan struct {
	Name     string `yaml:"name"`
	CronExpr string `yaml:"cron"`
	Reset    bool   `yaml:"reset"`
}

type entry struct {
	plan    Plan
	sched   cron.Schedule
	nextRun time.Time
}

type Service struct {
	ws       Passer
	entries  []*entry
	onPass   func(Plan, Result)
	stop     chan struct{}
	stopOnce sync.Once
	interval time.Duration
}

// NewService validates every plan's cron expression up front.
func NewService(ws Passer, plans []Plan, checkInterval time.Duration, now time.Time) (*Service, error) {
	s := &Service{ws: ws, stop: make(chan struct{}), interval: checkInterval}
	for _, p := range plans {
		sched, err := cron.ParseStandard(p.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("plan %q: invalid cron expression: %w", p.Name, err)
		}
		s.entries = append(s.entries, &entry{plan: p, sched: sched, nextRun: sched.Next(now)})
	}
	return s, nil
}

// OnPass registers a callback run after every pass, on the service goroutine.
func (s *Service) OnPass(fn func(Plan, Result)) { s.onPass = fn }

func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Int("plans", len(s.entries)).Msg("shift service started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.processDue(now)
		}
	}
}

// Stop ends Start. It may be called more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Service) processDue(now time.Time) {
	for _, e := range s.entries {
		if now.Before(e.nextRun) {
			continue
		}
		s.run(e.plan)
		e.nextRun = e.sched.Next(now)
		log.Debug().Str("plan", e.plan.Name).Time("next_run", e.nextRun).Msg("plan rescheduled")
	}
}

func (s *Service) run(p Plan) {
	var res Result
	if p.Reset {
		res = s.ws.StartShift()
	} else {
		res = s.ws.Assign()
	}
	log.Info().
		Str("plan", p.Name).
		Bool("reset", p.Reset).
		Int("assigned", len(res.Assignments)).
		Int("unassigned", len(res.Unassigned)).
		Msg("scheduled pass complete")
	if s.onPass != nil {
		s.onPass(p, res)
	}
}

// NextRuns reports when each plan fires next.
func (s *Service) NextRuns() map[string]time.Time {
	out := make(map[string]time.Time, len(s.entries))
	for _, e := range s.entries {
		out[e.plan.Name] = e.nextRun
	}
	return out
}

// ValidateCronExpression validates a cron expression
func ValidateCronExpression(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

// NextRunTime calculates the next run time for a cron expression
func NextRunTime(expr string, from time.Time) (time.Time, error) {
	cronSchedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, err
	}
	return cronSchedule.Next(from), nil
}
