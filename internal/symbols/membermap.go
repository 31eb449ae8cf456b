package symbols

import "sync"

// MemberMap is the append-only, order-preserving string-to-Member container
// used by ClassType.Members and ModuleType.Exports (spec.md §3 "Class
// type": "a members mapping (string → Member, insertion order preserved for
// stable hover)"). "Append-only" means no entry is ever removed; Set may
// still update an existing entry's value in place so later passes (e.g. a
// constructor's attribute writes) can refine an earlier placeholder without
// disturbing its original position.
type MemberMap struct {
	mu     sync.Mutex
	order  []string
	byName map[string]Member
}

// NewMemberMap creates an empty member map.
func NewMemberMap() *MemberMap {
	return &MemberMap{byName: make(map[string]Member)}
}

// Set inserts name if new, or updates its value in place if already present.
func (m *MemberMap) Set(name string, value Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; !ok {
		m.order = append(m.order, name)
	}
	m.byName[name] = value
}

// Get returns the member bound to name, and whether it was present.
func (m *MemberMap) Get(name string) (Member, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byName[name]
	return v, ok
}

// Names returns all names in insertion order.
func (m *MemberMap) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len reports the number of entries.
func (m *MemberMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Each calls fn for every entry in insertion order, over a snapshot of the
// names taken when Each starts. m's lock is not held while fn runs.
func (m *MemberMap) Each(fn func(name string, value Member)) {
	for _, name := range m.Names() {
		if v, ok := m.Get(name); ok {
			fn(name, v)
		}
	}
}
