package sendfile

import "sync"

// Hub Code
type cmap struct {
	m     map[string]*wshandler
	_lock sync.Mutex
}

// add adds entry.
// Add a new entry to the map
func (m *cmap) add(id string, h *wshandler) {
	m._lock.Lock()
	defer m._lock.Unlock()

	m.m[id] = h
}

func (m *cmap) remove(id string) {
	m._lock.Lock()
	defer m._lock.Unlock()

	delete(m.m, id)
}

func (m *cmap) count() int {
	m._lock.Lock()
	defer m._lock.Unlock()

	return len(m.m)
}

func (m *cmap) closeAll() {
	m._lock.Lock()
	defer m._lock.Unlock()

	for _, h := range m.m {
		h.Terminate()
	}
}

// broadcast hands ev to every subscriber. Slow subscribers lose events
// rather than hold up the responder; the number lost is returned.
func (m *cmap) broadcast(ev Event) (dropped int) {
	m._lock.Lock()
	defer m._lock.Unlock()

	for _, h := range m.m {
		if !h.send(ev) {
			dropped++
		}
	}
	return dropped
}
