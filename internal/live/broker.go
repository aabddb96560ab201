// Package live signals hike mutations to observers so they can re-read the store.
package live

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

// Change kinds published by the service layer.
const (
	KindCreated  = "created"
	KindUpdated  = "updated"
	KindDeleted  = "deleted"
	KindCleared  = "cleared"
	KindImported = "imported"
)

// Change describes one committed mutation. Version increases by one per change.
type Change struct {
	Version uint64 `json:"version"`
	Kind    string `json:"kind"`
	HikeID  int64  `json:"hikeId,omitempty"`
}

type notifyReq struct {
	kind   string
	hikeID int64
}

// Broker fans out change notifications and owns the change counter.
//
// A single internal event loop (goroutine) owns the subscriber set and the
// counter. Public methods talk to it over channels, so no mutexes are needed.
// Subscribers with a full buffer miss the signal; since observers re-read
// current state instead of applying deltas, a later signal catches them up.
type Broker struct {
	subscribeCh   chan chan Change
	unsubscribeCh chan chan Change
	notifyCh      chan notifyReq
	versionReqCh  chan chan uint64
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its loop.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan chan Change),
		unsubscribeCh: make(chan chan Change),
		notifyCh:      make(chan notifyReq, 256),
		versionReqCh:  make(chan chan uint64),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan Change]struct{})
	var version uint64

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case req := <-b.notifyCh:
			version++
			c := Change{Version: version, Kind: req.kind, HikeID: req.hikeID}
			for ch := range clients {
				select {
				case ch <- c:
				default:
				}
			}

		case resp := <-b.versionReqCh:
			resp <- version

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a new observer and returns its channel.
// The channel is closed by Unsubscribe or Close.
func (b *Broker) Subscribe() chan Change {
	ch := make(chan Change, 16)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes an observer and closes its channel.
func (b *Broker) Unsubscribe(ch chan Change) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribed observers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Version returns how many changes have been published so far.
func (b *Broker) Version() uint64 {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan uint64, 1)
	select {
	case b.versionReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case v := <-resp:
		return v
	case <-b.stopped:
		return 0
	}
}

// NotifyChanged bumps the change counter and signals every observer.
// Call it after a mutating store call has completed.
func (b *Broker) NotifyChanged(kind string, hikeID int64) {
	if b.closed.Load() {
		return
	}
	select {
	case b.notifyCh <- notifyReq{kind: kind, hikeID: hikeID}:
	case <-b.stopped:
	}
}

// ServeHTTP streams changes as Server-Sent Events (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the headers go out so a client that saw the
	// response cannot miss a change.
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(c)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: hikes.changed\nid: %d\ndata: %s\n\n", c.Version, payload)
			flusher.Flush()
		}
	}
}
