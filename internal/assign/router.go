package assign

import "sync/atomic"

// Router deals on-demand slots round-robin. The zero value is not usable;
// create one with NewRouter.
type Router struct {
	size    uint64
	counter atomic.Uint64
}

// NewRouter creates a router over size on-demand slots. A size below 1 is
// treated as 1.
func NewRouter(size int) *Router {
	if size < 1 {
		size = 1
	}
	return &Router{size: uint64(size)}
}

// Next returns the next slot index. The underlying counter only increases;
// the index wraps modulo the pool size. Safe for concurrent use.
func (r *Router) Next() int {
	n := r.counter.Add(1) - 1
	return int(n % r.size)
}

// Size returns the number of on-demand slots.
func (r *Router) Size() int {
	return int(r.size)
}
