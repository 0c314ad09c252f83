package sendfile

import "sync"

type O map[string]interface{}

// reqcount counts answered requests per outcome.
type reqcount struct {
	r map[string]uint64
	s sync.Mutex
}

func (r *reqcount) Add(k string) {
	r.s.Lock()
	defer r.s.Unlock()

	if r.r == nil {
		r.r = make(map[string]uint64)
	}
	r.r[k]++
}

func (r *reqcount) Get(k string) uint64 {
	r.s.Lock()
	defer r.s.Unlock()

	if r.r == nil {
		return 0
	}
	return r.r[k]
}

// Snapshot copies the counters so they can be encoded without the lock.
func (r *reqcount) Snapshot() map[string]uint64 {
	r.s.Lock()
	defer r.s.Unlock()

	out := make(map[string]uint64, len(r.r))
	for k, v := range r.r {
		out[k] = v
	}
	return out
}

// OutcomeCount returns how many requests ended with o.
func (r *Router) OutcomeCount(o Outcome) uint64 {
	return r.rqc.Get(string(o))
}
