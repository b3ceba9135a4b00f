package route

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"northpole/internal/domain"
)

func stop(addr string, x, y float64) domain.Stop {
	return domain.Stop{Address: addr, Point: domain.Point{X: x, Y: y}}
}

func TestNearest_VisitsClosestFirst(t *testing.T) {
	stops := []domain.Stop{stop("A", 0, 0), stop("B", 3, 4), stop("C", 1, 1)}

	p := Nearest(stops)

	assert.Equal(t, []string{"A", "C", "B"}, p.Route)
	want := math.Sqrt2 + math.Hypot(2, 3)
	assert.InDelta(t, want, p.Distance, 1e-9)
}

func TestNearest_EdgeCases(t *testing.T) {
	empty := Nearest(nil)
	assert.Empty(t, empty.Route)
	assert.NotNil(t, empty.Route)
	assert.Zero(t, empty.Distance)

	one := Nearest([]domain.Stop{stop("North Pole", 50, 50)})
	assert.Equal(t, []string{"North Pole"}, one.Route)
	assert.Zero(t, one.Distance)
}

func TestNearest_TieGoesToFirstSupplied(t *testing.T) {
	stops := []domain.Stop{stop("start", 0, 0), stop("east", 1, 0), stop("west", -1, 0), stop("north", 0, 1)}

	p := Nearest(stops)

	require.Len(t, p.Route, 4)
	assert.Equal(t, "east", p.Route[1])
}

func TestNearest_OverflowingDistances(t *testing.T) {
	stops := []domain.Stop{stop("A", -1e308, 0), stop("B", 1e308, 0), stop("C", 1e308, 1)}

	var p Plan
	require.NotPanics(t, func() { p = Nearest(stops) })
	assert.Equal(t, []string{"A", "B", "C"}, p.Route)
	assert.True(t, math.IsInf(p.Distance, 1))
}

func TestNearest_IsNotOptimal(t *testing.T) {
	// Greedy walks right first and pays for the long way back.
	stops := []domain.Stop{stop("S", 0, 0), stop("R1", 1, 0), stop("L1", -1.5, 0), stop("R2", 4, 0)}

	p := Nearest(stops)

	assert.Equal(t, []string{"S", "R1", "L1", "R2"}, p.Route)
	assert.InDelta(t, 1+2.5+5.5, p.Distance, 1e-9)
	assert.Greater(t, p.Distance, Length(stops, []string{"S", "L1", "R1", "R2"}))
	assert.InDelta(t, p.Distance, Length(stops, p.Route), 1e-9)
}

func TestNearest_RandomizedTotality(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 40; n++ {
		var addrs []string
		for i := 0; i < n; i++ {
			addrs = append(addrs, fmt.Sprintf("%d Candy Cane Ln", i))
		}
		stops := Generate(addrs, rng)

		p := Nearest(stops)

		require.Len(t, p.Route, n)
		got := append([]string(nil), p.Route...)
		sort.Strings(got)
		want := append([]string(nil), addrs...)
		sort.Strings(want)
		assert.Equal(t, want, got)
		assert.GreaterOrEqual(t, p.Distance, 0.0)
		assert.InDelta(t, Length(stops, p.Route), p.Distance, 1e-6)
		if n > 0 {
			assert.Equal(t, addrs[0], p.Route[0])
		}
	}
}

func TestGenerate_Bounds(t *testing.T) {
	stops := Generate([]string{"a", "b", "c"}, rand.New(rand.NewSource(1)))
	require.Len(t, stops, 3)
	for i, s := range stops {
		assert.Equal(t, []string{"a", "b", "c"}[i], s.Address)
		assert.True(t, s.X >= 0 && s.X <= 100)
		assert.True(t, s.Y >= 0 && s.Y <= 100)
		assert.Equal(t, math.Trunc(s.X), s.X)
	}
}
