package pagination

import "github.com/Sternrassler/kitsu-catalog/pkg/catalog"

// Collection is an ordered list of entities unique by identity.
// It is not safe for concurrent use; Loader guards it.
type Collection struct {
	items []catalog.Entity
	seen  map[catalog.Identity]struct{}
}

// NewCollection creates a collection seeded with items.
func NewCollection(items ...catalog.Entity) *Collection {
	c := &Collection{seen: make(map[catalog.Identity]struct{}, len(items))}
	c.Merge(items)
	return c
}

// Merge appends the items not seen before, in their given order, and returns
// them. Repeats keep their original position; the first occurrence wins.
func (c *Collection) Merge(items []catalog.Entity) []catalog.Entity {
	var added []catalog.Entity
	for _, e := range items {
		id := e.Identity()
		if _, ok := c.seen[id]; ok {
			continue
		}
		c.seen[id] = struct{}{}
		c.items = append(c.items, e)
		added = append(added, e)
	}
	return added
}

// Contains reports whether an entity with the identity was merged.
func (c *Collection) Contains(id catalog.Identity) bool {
	_, ok := c.seen[id]
	return ok
}

// Len returns the number of items.
func (c *Collection) Len() int {
	return len(c.items)
}

// Items returns a copy of the items in first-seen order.
func (c *Collection) Items() []catalog.Entity {
	return append([]catalog.Entity(nil), c.items...)
}
