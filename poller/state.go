package poller

import (
	"sync"
	"time"
)

// State holds the most recent snapshot and fans it out to subscribers.
type State struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	at       time.Time

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

func NewState() *State {
	return &State{subs: map[int]chan Snapshot{}}
}

// Set stores s as the latest snapshot and notifies subscribers. Subscribers
// that have not drained their previous snapshot miss this one.
func (st *State) Set(s Snapshot) {
	st.mu.Lock()
	st.snapshot = &s
	st.at = time.Now()
	st.mu.Unlock()

	st.subMu.Lock()
	defer st.subMu.Unlock()
	for _, ch := range st.subs {
		select {
		case ch <- s.Clone():
		default:
		}
	}
}

// Get returns a copy of the latest snapshot and when it was taken. Before
// the first poll it returns an empty snapshot and the zero time.
func (st *State) Get() (Snapshot, time.Time) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.snapshot == nil {
		return Snapshot{Raw: map[string][]string{}}, time.Time{}
	}
	return st.snapshot.Clone(), st.at
}

// Subscribe returns a channel receiving each new snapshot. The returned
// func unsubscribes and closes the channel.
func (st *State) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	st.subMu.Lock()
	id := st.nextID
	st.nextID++
	st.subs[id] = ch
	st.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			st.subMu.Lock()
			delete(st.subs, id)
			st.subMu.Unlock()
			close(ch)
		})
	}
}
