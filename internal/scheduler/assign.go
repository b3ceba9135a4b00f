package scheduler

import (
	"sort"

	"northpole/internal/domain"
)

// Catalog resolves an order's toy reference.
type Catalog interface {
	Toy(name string) (domain.Toy, bool)
}

type Assignment struct {
	OrderID string `json:"order_id"`
	Child   string `json:"child"`
	Toy     string `json:"toy"`
	Elf     string `json:"elf"`
}

type Result struct {
	Assignments []Assignment   `json:"assignments"`
	Unassigned  []domain.Order `json:"unassigned"`
}

// Assign runs one best-fit pass. Orders are taken by priority descending, then
// by toy cost ascending, then in queue order. Each order goes to the eligible
// elf left with the least spare capacity; ties go to the earliest elf in the
// slice. The elves are mutated in place, so calling Assign twice on the same
// pool consumes capacity twice.
func Assign(orders []domain.Order, catalog Catalog, elves []*domain.Elf) Result {
	type pending struct {
		order domain.Order
		toy   domain.Toy
	}

	res := Result{Assignments: []Assignment{}, Unassigned: []domain.Order{}}
	queue := make([]pending, 0, len(orders))
	for _, o := range orders {
		toy, ok := catalog.Toy(o.Toy)
		if !ok {
			res.Unassigned = append(res.Unassigned, o)
			continue
		}
		queue = append(queue, pending{order: o, toy: toy})
	}

	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].order.Priority != queue[j].order.Priority {
			return queue[i].order.Priority > queue[j].order.Priority
		}
		return queue[i].toy.Cost < queue[j].toy.Cost
	})

	for _, p := range queue {
		best := bestFit(elves, p.toy)
		if best == nil {
			res.Unassigned = append(res.Unassigned, p.order)
			continue
		}
		best.Assign(p.order, p.toy)
		res.Assignments = append(res.Assignments, Assignment{
			OrderID: p.order.ID,
			Child:   p.order.Child,
			Toy:     p.toy.Name,
			Elf:     best.Name,
		})
	}
	return res
}

func bestFit(elves []*domain.Elf, toy domain.Toy) *domain.Elf {
	var best *domain.Elf
	for _, e := range elves {
		if !e.CanBuild(toy) {
			continue
		}
		if best == nil || e.Capacity < best.Capacity {
			best = e
		}
	}
	return best
}
