package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/danmuck/objsync/internal/protocol"
)

// MemoryBus delivers messages between endpoints in one process. Every send
// goes through the wire codec so in-process peers see exactly what UDP peers
// would.
type MemoryBus struct {
	mu        sync.Mutex
	endpoints map[protocol.PeerID]*MemoryEndpoint
	order     []protocol.PeerID
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{endpoints: make(map[protocol.PeerID]*MemoryEndpoint)}
}

// Join attaches a new endpoint for id with an inbox of size buffered
// messages.
func (b *MemoryBus) Join(id protocol.PeerID, size int) (*MemoryEndpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.endpoints[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePeer, id)
	}
	if size <= 0 {
		size = 64
	}
	ep := &MemoryEndpoint{
		id:    id,
		bus:   b,
		inbox: make(chan []byte, size),
		done:  make(chan struct{}),
	}
	b.endpoints[id] = ep
	b.order = append(b.order, id)
	return ep, nil
}

func (b *MemoryBus) leave(id protocol.PeerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.endpoints, id)
	for i, p := range b.order {
		if p == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *MemoryBus) broadcast(from protocol.PeerID, datagram []byte) {
	b.mu.Lock()
	targets := make([]*MemoryEndpoint, 0, len(b.order))
	for _, id := range b.order {
		if id != from {
			targets = append(targets, b.endpoints[id])
		}
	}
	b.mu.Unlock()
	for _, ep := range targets {
		ep.deliver(datagram)
	}
}

// MemoryEndpoint is one peer's view of a MemoryBus.
type MemoryEndpoint struct {
	id    protocol.PeerID
	bus   *MemoryBus
	inbox chan []byte

	closeOnce sync.Once
	done      chan struct{}
	dropped   int
	dropMu    sync.Mutex
}

func (e *MemoryEndpoint) deliver(datagram []byte) {
	select {
	case <-e.done:
	case e.inbox <- datagram:
	default:
		e.dropMu.Lock()
		e.dropped++
		e.dropMu.Unlock()
	}
}

// Dropped returns how many datagrams were lost to a full inbox.
func (e *MemoryEndpoint) Dropped() int {
	e.dropMu.Lock()
	defer e.dropMu.Unlock()
	return e.dropped
}

func (e *MemoryEndpoint) Send(ctx context.Context, msg *protocol.ObjectSyncMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	b, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	e.bus.broadcast(e.id, b)
	return nil
}

func (e *MemoryEndpoint) Receive(ctx context.Context) (*protocol.ObjectSyncMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, ErrClosed
	case b := <-e.inbox:
		return protocol.Unmarshal(b)
	}
}

// Pending drains every queued message without blocking.
func (e *MemoryEndpoint) Pending() ([]protocol.ObjectSyncMessage, error) {
	var out []protocol.ObjectSyncMessage
	for {
		select {
		case b := <-e.inbox:
			msg, err := protocol.Unmarshal(b)
			if err != nil {
				return out, err
			}
			out = append(out, *msg)
		default:
			return out, nil
		}
	}
}

func (e *MemoryEndpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.bus.leave(e.id)
	})
	return nil
}
