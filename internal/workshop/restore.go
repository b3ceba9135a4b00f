package workshop

import (
	"northpole/internal/domain"
)

// Restore replaces the workshop state with s. Every entity is validated
// first; on error the current state is left untouched.
func (w *Workshop) Restore(s domain.Snapshot) error {
	catalog := NewCatalog()
	for i, t := range s.Toys {
		if err := t.Validate(); err != nil {
			return domain.Invalidf("toys", "toy #%d: %v", i, err)
		}
		if _, dup := catalog.Toy(t.Name); dup {
			return domain.Invalidf("toys", "duplicate toy %q", t.Name)
		}
		catalog.Add(t)
	}

	elves := make([]*domain.Elf, 0, len(s.Elves))
	names := map[string]struct{}{}
	for i := range s.Elves {
		e := s.Elves[i].Clone()
		e.Skills = domain.NormalizeSkills(e.Skills)
		if e.Shift == 0 {
			e.Shift = e.Capacity + e.Used()
		}
		if err := e.Validate(); err != nil {
			return domain.Invalidf("elves", "elf #%d: %v", i, err)
		}
		if e.Used()+e.Capacity > e.Shift {
			return domain.Invalidf("elves", "elf %q holds %d minutes of work with %d left, over its shift of %d", e.Name, e.Used(), e.Capacity, e.Shift)
		}
		if _, dup := names[e.Name]; dup {
			return domain.Invalidf("elves", "duplicate elf %q", e.Name)
		}
		names[e.Name] = struct{}{}
		elves = append(elves, e)
	}

	ids := map[string]struct{}{}
	for i, o := range s.Orders {
		if o.ID == "" {
			return domain.Invalidf("orders", "order #%d has no id", i)
		}
		if err := o.Validate(); err != nil {
			return domain.Invalidf("orders", "order #%d: %v", i, err)
		}
		if _, ok := catalog.Toy(o.Toy); !ok {
			return domain.Invalidf("orders", "order #%d references unknown toy %q", i, o.Toy)
		}
		if _, dup := ids[o.ID]; dup {
			return domain.Invalidf("orders", "duplicate order id %q", o.ID)
		}
		ids[o.ID] = struct{}{}
	}

	scheduled := make(map[string]string, len(s.Scheduled))
	for id, elf := range s.Scheduled {
		if _, ok := ids[id]; !ok {
			return domain.Invalidf("scheduled", "unknown order %q", id)
		}
		if _, ok := names[elf]; !ok {
			return domain.Invalidf("scheduled", "order %q scheduled on unknown elf %q", id, elf)
		}
		scheduled[id] = elf
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.catalog = catalog
	w.elves = elves
	w.orders = append([]domain.Order(nil), s.Orders...)
	w.scheduled = scheduled
	return nil
}
