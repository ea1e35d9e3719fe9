package credential

import "sync"

// flightGroup collapses concurrent work for the same key onto one execution.
// All callers of do for an in-flight key block until the owner finishes and
// share its result. The scope is one process; cross-instance arbitration is
// the store's version lock.
type flightGroup struct {
	mu      sync.Mutex
	flights map[string]*flight
}

type flight struct {
	done  chan struct{}
	token string
	err   error
}

func newFlightGroup() *flightGroup {
	return &flightGroup{flights: make(map[string]*flight)}
}

// do executes fn for key, or waits for the in-flight execution and shares
// its result
func (g *flightGroup) do(key string, fn func() (string, error)) (string, error) {
	g.mu.Lock()
	if f, ok := g.flights[key]; ok {
		g.mu.Unlock()
		<-f.done
		return f.token, f.err
	}

	f := &flight{done: make(chan struct{})}
	g.flights[key] = f
	g.mu.Unlock()

	f.token, f.err = fn()

	g.mu.Lock()
	delete(g.flights, key)
	g.mu.Unlock()
	close(f.done)

	return f.token, f.err
}
