package route

import (
	"math"
	"math/rand"

	"northpole/internal/domain"
)

// Plan is an open delivery path: it does not return to the first stop.
type Plan struct {
	Route    []string `json:"route"`
	Distance float64  `json:"distance"`
}

// Nearest builds a route by nearest-neighbour selection, starting at stops[0].
// Equidistant candidates resolve to the one that comes first in stops.
// The result is a heuristic path, not a shortest one.
func Nearest(stops []domain.Stop) Plan {
	p := Plan{Route: make([]string, 0, len(stops))}
	if len(stops) == 0 {
		return p
	}

	visited := make([]bool, len(stops))
	cur := 0
	visited[cur] = true
	p.Route = append(p.Route, stops[cur].Address)

	for n := 1; n < len(stops); n++ {
		next, best := -1, math.Inf(1)
		for i := range stops {
			if visited[i] {
				continue
			}
			// next == -1 keeps the walk total when every leg overflows to +Inf.
			if d := Distance(stops[cur].Point, stops[i].Point); next == -1 || d < best {
				next, best = i, d
			}
		}
		visited[next] = true
		p.Distance += best
		p.Route = append(p.Route, stops[next].Address)
		cur = next
	}
	return p
}

// Distance is the straight-line distance between a and b.
func Distance(a, b domain.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Length sums the leg distances of an ordered route over the given stops.
func Length(stops []domain.Stop, route []string) float64 {
	at := make(map[string]domain.Point, len(stops))
	for _, s := range stops {
		at[s.Address] = s.Point
	}
	total := 0.0
	for i := 0; i+1 < len(route); i++ {
		total += Distance(at[route[i]], at[route[i+1]])
	}
	return total
}

// Generate places each address on a 100x100 integer grid.
func Generate(addresses []string, rng *rand.Rand) []domain.Stop {
	out := make([]domain.Stop, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, domain.Stop{
			Address: a,
			Point:   domain.Point{X: float64(rng.Intn(101)), Y: float64(rng.Intn(101))},
		})
	}
	return out
}
