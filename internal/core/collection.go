package core

// Collection is the set of expenses owned by one tracker instance.
// IDs are unique; insertion order is kept so stable sorts have a tie-breaker.
type Collection struct {
	items []Expense
	index map[string]int
}

// NewCollection builds a collection. On duplicate IDs the last record wins
// and keeps the position of the first one.
func NewCollection(items ...Expense) *Collection {
	c := &Collection{index: make(map[string]int, len(items))}
	for _, e := range items {
		c.Upsert(e)
	}
	return c
}

// Upsert adds e, or replaces the record with the same ID in place.
func (c *Collection) Upsert(e Expense) (replaced bool) {
	if i, ok := c.index[e.ID]; ok {
		c.items[i] = e
		return true
	}
	c.index[e.ID] = len(c.items)
	c.items = append(c.items, e)
	return false
}

// Remove deletes the expense with the given ID. Missing IDs are not an error.
func (c *Collection) Remove(id string) bool {
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].ID] = j
	}
	return true
}

func (c *Collection) Get(id string) (Expense, bool) {
	i, ok := c.index[id]
	if !ok {
		return Expense{}, false
	}
	return c.items[i], true
}

func (c *Collection) Len() int {
	return len(c.items)
}

// Items returns a copy in insertion order.
func (c *Collection) Items() []Expense {
	return append([]Expense(nil), c.items...)
}
