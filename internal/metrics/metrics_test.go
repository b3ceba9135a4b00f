package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"northpole/internal/domain"
	"northpole/internal/scheduler"
)

func TestObservePass(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	before := testutil.ToFloat64(OrdersScheduled.WithLabelValues("unassigned"))
	ObservePass(scheduler.Result{
		Assignments: []scheduler.Assignment{{OrderID: "a"}, {OrderID: "b"}},
		Unassigned:  []domain.Order{{ID: "c"}},
	})
	assert.Equal(t, before+1, testutil.ToFloat64(OrdersScheduled.WithLabelValues("unassigned")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(OrdersScheduled.WithLabelValues("assigned")), 2.0)
}

func TestObserveEvent(t *testing.T) {
	ObserveEvent(domain.BuildEvent{Elf: "Buddy", Kind: domain.EventStart})
	ObserveEvent(domain.BuildEvent{Elf: "Buddy", Kind: domain.EventFinish})
	assert.Equal(t, 1.0, testutil.ToFloat64(BuildEvents.WithLabelValues("Buddy", "start")))
}
