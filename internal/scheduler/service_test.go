package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northpole/internal/domain"
)

type fakeWorkshop struct {
	calls []string
}

func (f *fakeWorkshop) Assign() Result {
	f.calls = append(f.calls, "assign")
	return Result{Assignments: []Assignment{{OrderID: "o1", Elf: "Buddy"}}, Unassigned: []domain.Order{}}
}

func (f *fakeWorkshop) StartShift() Result {
	f.calls = append(f.calls, "shift")
	return Result{Assignments: []Assignment{{OrderID: "o2", Elf: "Jingle"}}, Unassigned: []domain.Order{}}
}

func TestService_ProcessDue(t *testing.T) {
	start := time.Date(2026, 12, 24, 5, 30, 0, 0, time.UTC)
	ws := &fakeWorkshop{}
	svc, err := NewService(ws, []Plan{
		{Name: "morning-shift", CronExpr: "0 6 * * *", Reset: true},
		{Name: "top-up", CronExpr: "*/15 * * * *"},
	}, time.Second, start)
	require.NoError(t, err)

	var passes []string
	svc.OnPass(func(p Plan, r Result) {
		passes = append(passes, p.Name)
		assert.Len(t, r.Assignments, 1)
	})

	assert.Equal(t, map[string]time.Time{
		"morning-shift": time.Date(2026, 12, 24, 6, 0, 0, 0, time.UTC),
		"top-up":        time.Date(2026, 12, 24, 5, 45, 0, 0, time.UTC),
	}, svc.NextRuns())

	svc.processDue(start.Add(time.Minute))
	assert.Empty(t, ws.calls)

	svc.processDue(time.Date(2026, 12, 24, 5, 45, 0, 0, time.UTC))
	assert.Equal(t, []string{"assign"}, ws.calls)

	svc.processDue(time.Date(2026, 12, 24, 6, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"assign", "shift", "assign"}, ws.calls)
	assert.Equal(t, []string{"top-up", "morning-shift", "top-up"}, passes)

	next := svc.NextRuns()
	assert.Equal(t, time.Date(2026, 12, 25, 6, 0, 0, 0, time.UTC), next["morning-shift"])
	assert.Equal(t, time.Date(2026, 12, 24, 6, 15, 0, 0, time.UTC), next["top-up"])
}

func TestService_InvalidCron(t *testing.T) {
	_, err := NewService(&fakeWorkshop{}, []Plan{{Name: "bad", CronExpr: "every tuesday"}}, time.Second, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `plan "bad"`)
}

func TestService_StartStops(t *testing.T) {
	svc, err := NewService(&fakeWorkshop{}, nil, 5*time.Millisecond, time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
}

func TestService_Stop(t *testing.T) {
	svc, err := NewService(&fakeWorkshop{}, nil, 5*time.Millisecond, time.Now())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.Start(context.Background())
		close(done)
	}()
	svc.Stop()
	svc.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
}

func TestCronHelpers(t *testing.T) {
	assert.NoError(t, ValidateCronExpression("@every 1m"))
	assert.Error(t, ValidateCronExpression("61 * * * *"))

	next, err := NextRunTime("0 6 * * *", time.Date(2026, 12, 24, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 25, 6, 0, 0, 0, time.UTC), next)
}
