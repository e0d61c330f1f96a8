package db

import "sync"

// Cache is the identity map for claims and verbs. Asking for an id always
// returns the same object until the id is evicted. A fresh id is registered
// as an unpopulated placeholder before any row is fetched, so a claim whose
// subject or object chain leads back to itself resolves to the placeholder
// instead of recursing.
//
// mu guards the maps only. Each Claim and Verb guards its own row, so a
// write refreshing an entry never tears a concurrent reader's Row copy.
//
// A Cache belongs to one DB and lives until DB.Close.
type Cache struct {
	mu     sync.Mutex
	claims map[int64]*Claim
	verbs  map[int64]*Verb
}

// NewCache creates an empty identity map
func NewCache() *Cache {
	return &Cache{
		claims: make(map[int64]*Claim),
		verbs:  make(map[int64]*Verb),
	}
}

// Claim returns the cached claim for id, registering a placeholder if needed
func (c *Cache) Claim(id int64) *Claim {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.claims[id]
	if !ok {
		cl = &Claim{ID: id}
		c.claims[id] = cl
	}
	return cl
}

// Verb returns the cached verb for id, registering a placeholder if needed
func (c *Cache) Verb(id int64) *Verb {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.verbs[id]
	if !ok {
		v = &Verb{ID: id}
		c.verbs[id] = v
	}
	return v
}

// EvictClaim drops id from the map
func (c *Cache) EvictClaim(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, id)
}

// EvictVerb drops id from the map
func (c *Cache) EvictVerb(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.verbs, id)
}

// Len returns the number of cached claims and verbs, placeholders included
func (c *Cache) Len() (claims, verbs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claims), len(c.verbs)
}

// Reset empties the map
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims = make(map[int64]*Claim)
	c.verbs = make(map[int64]*Verb)
}

// fillClaim routes row into the cached object for row.ID. force overwrites
// an already populated entry (after a write); otherwise populated entries
// are left alone. The map lock only covers the lookup; the object guards
// its own row.
func (c *Cache) fillClaim(row ClaimRow, force bool) *Claim {
	cl := c.Claim(row.ID)
	cl.fill(row, force)
	return cl
}

func (c *Cache) fillVerb(row VerbRow, force bool) *Verb {
	v := c.Verb(row.ID)
	v.fill(row, force)
	return v
}
