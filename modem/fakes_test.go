package modem_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"i4.energy/across/linkstation/modem"
)

// fakeTopology is an in-memory device tree that counts lookups.
type fakeTopology struct {
	mu      sync.Mutex
	present map[string]bool
	ids     map[string]string   // device node -> interface id
	nodes   map[string][]string // interface id -> device nodes

	exists     map[string]int
	candidates int
	// replug maps a device to the scan count at which it reappears
	replug map[string]int
}

func newFakeTopology() *fakeTopology {
	return &fakeTopology{
		present: map[string]bool{},
		ids:     map[string]string{},
		nodes:   map[string][]string{},
		exists:  map[string]int{},
	}
}

// plug makes dev present under interface id.
func (f *fakeTopology) plug(dev, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.present[dev] = true
	f.ids[dev] = id
	f.nodes[id] = append(f.nodes[id], dev)
}

func (f *fakeTopology) unplug(dev string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.present, dev)
}

// replugAfterScans makes dev present again during the n-th candidate scan.
func (f *fakeTopology) replugAfterScans(dev string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replug == nil {
		f.replug = map[string]int{}
	}
	f.replug[dev] = n
}

func (f *fakeTopology) existsCalls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists[path]
}

func (f *fakeTopology) candidateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candidates
}

func (f *fakeTopology) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists[path]++
	return f.present[path]
}

func (f *fakeTopology) Candidates() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates++
	for dev, n := range f.replug {
		if f.candidates == n {
			f.present[dev] = true
			delete(f.replug, dev)
		}
	}
	var out []string
	for dev := range f.present {
		out = append(out, dev)
	}
	slices.Sort(out)
	return out, nil
}

func (f *fakeTopology) InterfaceID(device string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[device]
	return id, ok
}

func (f *fakeTopology) InterfaceNodes(id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.nodes[id]...)
	slices.Sort(out)
	return out, nil
}

// echoPort answers every written command with its echo and OK. It flags a
// write that arrives while a previous response is still unread.
type echoPort struct {
	mu          sync.Mutex
	pending     []byte
	busy        bool
	interleaved bool
	writes      int
	readDelay   time.Duration
}

func (p *echoPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		p.interleaved = true
	}
	p.busy = true
	p.writes++
	cmd := strings.TrimRight(string(b), "\r\n")
	p.pending = append(p.pending, []byte(cmd+"\r\n\r\nOK\r\n")...)
	return len(b), nil
}

// Read hands out the pending response in two halves to widen the window
// in which an interleaved write would be observed.
func (p *echoPort) Read(b []byte) (int, error) {
	time.Sleep(p.readDelay)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return 0, nil
	}
	half := max(1, len(p.pending)/2)
	n := copy(b, p.pending[:half])
	p.pending = p.pending[n:]
	if len(p.pending) == 0 {
		p.busy = false
	}
	return n, nil
}

func (p *echoPort) ResetInputBuffer() error { return nil }
func (p *echoPort) Drain() error            { return nil }
func (p *echoPort) Close() error            { return nil }

func (p *echoPort) sawInterleave() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interleaved
}

// bufferedPort models a kernel input buffer: bytes left by earlier traffic
// stay readable until ResetInputBuffer, and each write queues a reply.
type bufferedPort struct {
	mu      sync.Mutex
	input   []byte
	replies map[string]string
	resets  int
}

func (p *bufferedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cmd := strings.TrimRight(string(b), "\r\n")
	p.input = append(p.input, []byte(p.replies[cmd])...)
	return len(b), nil
}

func (p *bufferedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(b, p.input)
	p.input = p.input[n:]
	return n, nil
}

func (p *bufferedPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	p.input = nil
	return nil
}

func (p *bufferedPort) Drain() error { return nil }
func (p *bufferedPort) Close() error { return nil }

// blockingPort signals each write and never answers.
type blockingPort struct {
	written chan struct{}
}

func (p *blockingPort) Write(b []byte) (int, error) {
	select {
	case p.written <- struct{}{}:
	default:
	}
	return len(b), nil
}

func (p *blockingPort) Read(b []byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (p *blockingPort) ResetInputBuffer() error { return nil }
func (p *blockingPort) Drain() error            { return nil }
func (p *blockingPort) Close() error            { return nil }

// portDialer hands out the same port on every dial.
type portDialer struct {
	port  modem.Port
	mu    sync.Mutex
	dials []string
}

func (d *portDialer) Dial(_ context.Context, path string) (modem.Port, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, path)
	return d.port, nil
}
