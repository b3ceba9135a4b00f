package workshop

import "northpole/internal/domain"

// Catalog is the toy registry, keyed by name and enumerated in insertion order.
// It is not safe for concurrent use on its own; Workshop guards it.
type Catalog struct {
	toys  map[string]*domain.Toy
	names []string
}

func NewCatalog() *Catalog {
	return &Catalog{toys: map[string]*domain.Toy{}}
}

// Add inserts or replaces a toy.
func (c *Catalog) Add(t domain.Toy) {
	if cur, ok := c.toys[t.Name]; ok {
		*cur = t
		return
	}
	c.toys[t.Name] = &t
	c.names = append(c.names, t.Name)
}

func (c *Catalog) Remove(name string) error {
	if _, ok := c.toys[name]; !ok {
		return domain.Invalidf("toy", "toy %q not found", name)
	}
	delete(c.toys, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}
	return nil
}

func (c *Catalog) Toy(name string) (domain.Toy, bool) {
	t, ok := c.toys[name]
	if !ok {
		return domain.Toy{}, false
	}
	return *t, true
}

// Reserve takes one unit of stock from the named toy.
func (c *Catalog) Reserve(name string) bool {
	t, ok := c.toys[name]
	return ok && t.Reserve()
}

func (c *Catalog) List() []domain.Toy {
	out := make([]domain.Toy, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, *c.toys[n])
	}
	return out
}
