package post

import "sync"

// Tracker orders overlapping fetches. Every fetch takes a ticket from
// Begin; only the newest ticket may commit, so a slow response for an old
// URL never replaces the content of a newer one.
type Tracker struct {
	mu      sync.Mutex
	gen     uint64
	current Content
	has     bool
}

// Begin starts a fetch and supersedes all earlier ones.
func (t *Tracker) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	return t.gen
}

// Commit stores c if ticket is still the newest. It reports whether c was kept.
func (t *Tracker) Commit(ticket uint64, c Content) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket != t.gen {
		return false
	}
	t.current, t.has = c, true
	return true
}

// Current returns the last committed content.
func (t *Tracker) Current() (Content, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.has
}
