package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"northpole/internal/domain"
)

func TestSim_WaitsScaledDuration(t *testing.T) {
	h := Sim{Unit: 10 * time.Millisecond}
	start := time.Now()
	err := h.Handle(context.Background(), domain.Job{Toy: "Robot", Cost: 50})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSim_ZeroUnitIsInstant(t *testing.T) {
	assert.NoError(t, Sim{}.Handle(context.Background(), domain.Job{Cost: 900}))
}

func TestSim_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sim{Unit: time.Hour}.Handle(ctx, domain.Job{Cost: 10})
	assert.ErrorIs(t, err, context.Canceled)
}
