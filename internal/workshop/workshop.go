package workshop

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"northpole/internal/domain"
	"northpole/internal/scheduler"
)

// Workshop owns the catalog, the elf pool and the order queue. Every method
// takes the same lock, so at most one assignment pass runs per workshop.
type Workshop struct {
	mu        sync.Mutex
	catalog   *Catalog
	elves     []*domain.Elf
	orders    []domain.Order
	scheduled map[string]string // order ID -> elf name
}

func New() *Workshop {
	return &Workshop{catalog: NewCatalog(), scheduled: map[string]string{}}
}

func (w *Workshop) AddToy(t domain.Toy) error {
	if err := t.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.catalog.Add(t)
	return nil
}

// RemoveToy refuses to remove a toy that queued orders still reference.
func (w *Workshop) RemoveToy(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.catalog.Toy(name); !ok {
		return domain.Invalidf("toy", "toy %q not found", name)
	}
	refs := 0
	for _, o := range w.orders {
		if o.Toy == name {
			refs++
		}
	}
	if refs > 0 {
		return domain.Invalidf("toy", "toy %q is referenced by %d order(s)", name, refs)
	}
	return w.catalog.Remove(name)
}

func (w *Workshop) AddElf(e *domain.Elf) error {
	if e == nil {
		return domain.Invalid("elf", "elf is required")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, cur := range w.elves {
		if cur.Name == e.Name {
			return domain.Invalidf("name", "elf %q already exists", e.Name)
		}
	}
	w.elves = append(w.elves, e.Clone())
	return nil
}

// AddOrder appends the order to the queue. Nothing is added when validation fails.
func (w *Workshop) AddOrder(o domain.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.catalog.Toy(o.Toy); !ok {
		return domain.Invalidf("toy", "toy %q not found", o.Toy)
	}
	w.orders = append(w.orders, o)
	return nil
}

// CancelOrder removes the order at index. Builds already handed to an elf stay on its list.
func (w *Workshop) CancelOrder(index int) (domain.Order, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if index < 0 || index >= len(w.orders) {
		return domain.Order{}, domain.Invalidf("index", "order index %d out of range", index)
	}
	o := w.orders[index]
	w.orders = append(w.orders[:index], w.orders[index+1:]...)
	delete(w.scheduled, o.ID)
	return o, nil
}

// Assign runs one scheduler pass over the orders no elf holds yet. Orders
// left unassigned stay pending and are retried by the next pass.
func (w *Workshop) Assign() scheduler.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.assignLocked()
}

func (w *Workshop) assignLocked() scheduler.Result {
	pending := make([]domain.Order, 0, len(w.orders))
	for _, o := range w.orders {
		if _, ok := w.scheduled[o.ID]; !ok {
			pending = append(pending, o)
		}
	}
	res := scheduler.Assign(pending, w.catalog, w.elves)
	for _, a := range res.Assignments {
		w.scheduled[a.OrderID] = a.Elf
	}
	log.Debug().
		Int("pending", len(pending)).
		Int("assigned", len(res.Assignments)).
		Int("unassigned", len(res.Unassigned)).
		Msg("assignment pass")
	return res
}

// ResetCapacity starts a new shift: every elf gets its shift capacity back
// and its assigned list is cleared. Orders already scheduled stay scheduled.
func (w *Workshop) ResetCapacity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Workshop) resetLocked() {
	for _, e := range w.elves {
		e.Reset()
	}
}

// StartShift resets capacity and runs an assignment pass without releasing
// the lock in between, so no other pass sees the fresh shift first.
func (w *Workshop) StartShift() scheduler.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	return w.assignLocked()
}

type Reservation struct {
	Child  string `json:"child"`
	Toy    string `json:"toy"`
	Status string `json:"status"`
}

const (
	Reserved  = "RESERVED"
	Backorder = "BACKORDER"
)

// ReserveStock takes one unit of stock per queued order, in queue order.
func (w *Workshop) ReserveStock() []Reservation {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Reservation, 0, len(w.orders))
	for _, o := range w.orders {
		status := Backorder
		if w.catalog.Reserve(o.Toy) {
			status = Reserved
		}
		out = append(out, Reservation{Child: o.Child, Toy: o.Toy, Status: status})
	}
	return out
}

// EstimateBuildTime sums the build cost of every queued order.
func (w *Workshop) EstimateBuildTime() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, o := range w.orders {
		if t, ok := w.catalog.Toy(o.Toy); ok {
			total += t.Cost
		}
	}
	return total
}

func (w *Workshop) TopPriority(n int) []domain.Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := append([]domain.Order(nil), w.orders...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Addresses lists each distinct delivery address once, in queue order.
func (w *Workshop) Addresses() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, o := range w.orders {
		if _, ok := seen[o.Address]; ok {
			continue
		}
		seen[o.Address] = struct{}{}
		out = append(out, o.Address)
	}
	return out
}

// Elves returns detached copies of the pool, in insertion order.
func (w *Workshop) Elves() []domain.Elf {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elfCopies()
}

func (w *Workshop) elfCopies() []domain.Elf {
	out := make([]domain.Elf, 0, len(w.elves))
	for _, e := range w.elves {
		out = append(out, *e.Clone())
	}
	return out
}

func (w *Workshop) Snapshot() domain.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := domain.Snapshot{
		Toys:      w.catalog.List(),
		Elves:     w.elfCopies(),
		Orders:    append([]domain.Order{}, w.orders...),
		Scheduled: make(map[string]string, len(w.scheduled)),
	}
	for k, v := range w.scheduled {
		s.Scheduled[k] = v
	}
	return s
}
