package relay

import (
	"sync"

	"github.com/matst80/hookcast/internal/obs"
)

// Member is the hub's handle to one authenticated tunnel session. The owning
// session drains C(); the hub only ever hands off to the buffered channel.
type Member struct {
	ID   uint64
	Name string

	send   chan []byte
	closed bool // guarded by the hub mutex
}

// C is the member's outbound sink. It is closed when the member is
// unregistered, which tells the owning session to shut down.
func (m *Member) C() <-chan []byte { return m.send }

// Hub is the process-wide registry of authenticated tunnel sessions.
// Broadcast never blocks on a member: each member has its own buffered FIFO
// channel and a member that cannot keep up is evicted.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	members map[uint64]*Member
	buffer  int

	broadcasts int64
	delivered  int64
}

// NewHub creates an empty hub. buffer is the per-member outbound queue depth;
// values below 1 are raised to 1.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{members: make(map[uint64]*Member), buffer: buffer}
}

// Register adds a new member and returns its handle. It never fails; capacity
// limits are not the hub's concern.
func (h *Hub) Register(name string) *Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	m := &Member{ID: h.nextID, Name: name, send: make(chan []byte, h.buffer)}
	h.members[m.ID] = m
	obs.ActiveClients.Set(float64(len(h.members)))
	return m
}

// Unregister removes a member and closes its sink. Safe to call more than once
// and concurrently with Broadcast.
func (h *Hub) Unregister(m *Member) {
	if m == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(m)
}

func (h *Hub) dropLocked(m *Member) {
	if m.closed {
		return
	}
	m.closed = true
	delete(h.members, m.ID)
	close(m.send)
	obs.ActiveClients.Set(float64(len(h.members)))
}

// Broadcast hands msg to every member's sink and returns the number of members
// it reached. A member whose queue is full is evicted rather than waited on,
// so one stalled session never delays the others or the caller.
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, m := range h.members {
		select {
		case m.send <- msg:
			delivered++
		default:
			obs.Error("hub.member.overflow", obs.Fields{"id": m.ID, "name": m.Name})
			obs.DroppedTotal.WithLabelValues("overflow").Inc()
			h.dropLocked(m)
		}
	}
	h.broadcasts++
	h.delivered += int64(delivered)
	if delivered > 0 {
		obs.DeliveredTotal.Add(float64(delivered))
	}
	return delivered
}

// Stats returns current membership and lifetime broadcast counters for the
// dashboard and state API.
func (h *Hub) Stats() (members int, broadcasts, delivered int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members), h.broadcasts, h.delivered
}

// Len returns the current number of registered members.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members)
}

// Close unregisters every member, used during server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.members {
		h.dropLocked(m)
	}
}
