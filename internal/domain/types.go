package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuildScale converts a toy's cost into simulated build minutes.
const BuildScale = 10

const (
	MinPriority = 1
	MaxPriority = 5
)

type Toy struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Cost     int    `json:"build_time"`
	Stock    int    `json:"stock"`
}

func NewToy(name, category string, cost, stock int) (Toy, error) {
	t := Toy{Name: strings.TrimSpace(name), Category: strings.TrimSpace(category), Cost: cost, Stock: stock}
	return t, t.Validate()
}

func (t Toy) Validate() error {
	if t.Name == "" {
		return Invalid("name", "toy name is required")
	}
	if t.Category == "" {
		return Invalid("category", "toy category is required")
	}
	if t.Cost <= 0 {
		return Invalidf("build_time", "build time must be positive, got %d", t.Cost)
	}
	if t.Stock < 0 {
		return Invalidf("stock", "stock must not be negative, got %d", t.Stock)
	}
	return nil
}

// Reserve takes one unit of stock. It reports false when the toy is out of stock.
func (t *Toy) Reserve() bool {
	if t.Stock > 0 {
		t.Stock--
		return true
	}
	return false
}

// BuildMinutes is the simulated duration of one build of this toy.
func (t Toy) BuildMinutes() float64 { return float64(t.Cost) / BuildScale }

type Order struct {
	ID        string    `json:"id"`
	Child     string    `json:"child"`
	Toy       string    `json:"toy"`
	Priority  int       `json:"priority"`
	Address   string    `json:"address"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOrder validates priority before anything else is built.
func NewOrder(child, toy string, priority int, address, message string) (Order, error) {
	o := Order{
		ID:        "ord_" + uuid.NewString(),
		Child:     strings.TrimSpace(child),
		Toy:       strings.TrimSpace(toy),
		Priority:  priority,
		Address:   strings.TrimSpace(address),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (o Order) Validate() error {
	if o.Priority < MinPriority || o.Priority > MaxPriority {
		return Invalidf("priority", "priority must be between %d and %d, got %d", MinPriority, MaxPriority, o.Priority)
	}
	if o.Child == "" {
		return Invalid("child", "child is required")
	}
	if o.Toy == "" {
		return Invalid("toy", "toy is required")
	}
	return nil
}

// Job is a toy build held by an elf on behalf of one order.
type Job struct {
	OrderID string `json:"order_id"`
	Child   string `json:"child"`
	Toy     string `json:"toy"`
	Cost    int    `json:"build_time"`
	Address string `json:"address"`
}

func (j Job) BuildMinutes() float64 { return float64(j.Cost) / BuildScale }

type Elf struct {
	Name     string   `json:"name"`
	Skills   []string `json:"skills"`
	Capacity int      `json:"capacity"`
	Shift    int      `json:"shift_capacity"`
	Assigned []Job    `json:"assigned"`
}

func NewElf(name string, skills []string, capacity int) (*Elf, error) {
	e := &Elf{
		Name:     strings.TrimSpace(name),
		Skills:   NormalizeSkills(skills),
		Capacity: capacity,
		Shift:    capacity,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Elf) Validate() error {
	if e.Name == "" {
		return Invalid("name", "elf name is required")
	}
	if e.Capacity < 0 {
		return Invalidf("capacity", "capacity must not be negative, got %d", e.Capacity)
	}
	if e.Shift < e.Capacity {
		return Invalidf("shift_capacity", "shift capacity %d is below residual capacity %d", e.Shift, e.Capacity)
	}
	return nil
}

func (e *Elf) HasSkill(category string) bool {
	i := sort.SearchStrings(e.Skills, category)
	return i < len(e.Skills) && e.Skills[i] == category
}

func (e *Elf) CanBuild(t Toy) bool {
	return e.HasSkill(t.Category) && e.Capacity >= t.Cost
}

// Assign appends the build to the elf's list and consumes capacity.
func (e *Elf) Assign(o Order, t Toy) bool {
	if !e.CanBuild(t) {
		return false
	}
	e.Assigned = append(e.Assigned, Job{OrderID: o.ID, Child: o.Child, Toy: t.Name, Cost: t.Cost, Address: o.Address})
	e.Capacity -= t.Cost
	return true
}

// Used is the capacity consumed by the assigned list.
func (e *Elf) Used() int {
	n := 0
	for _, j := range e.Assigned {
		n += j.Cost
	}
	return n
}

// Reset starts a new shift.
func (e *Elf) Reset() {
	e.Capacity = e.Shift
	e.Assigned = nil
}

func (e *Elf) Clone() *Elf {
	c := *e
	c.Skills = append([]string(nil), e.Skills...)
	c.Assigned = append([]Job(nil), e.Assigned...)
	return &c
}

// NormalizeSkills trims, drops empties, deduplicates and sorts.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type EventKind string

const (
	EventStart  EventKind = "start"
	EventFinish EventKind = "finish"
)

type BuildEvent struct {
	Elf     string    `json:"elf"`
	OrderID string    `json:"order_id"`
	Toy     string    `json:"toy"`
	Kind    EventKind `json:"kind"`
	At      float64   `json:"at"` // simulated minutes since the simulation started
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Stop struct {
	Address string `json:"address"`
	Point
}

// Snapshot is a detached copy of a workshop's state.
type Snapshot struct {
	Toys      []Toy             `json:"toys"`
	Elves     []Elf             `json:"elves"`
	Orders    []Order           `json:"orders"`
	Scheduled map[string]string `json:"scheduled,omitempty"` // order ID -> elf name
}
