package replication

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrHubClosed is returned when joining a hub whose match has ended
var ErrHubClosed = errors.New("replication hub closed")

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub fans replication frames out to the observers of one match
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	closed  bool
	dropped uint64
}

// NewHub creates an empty hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, clients: make(map[*Client]bool)}
}

// Join registers c and queues snapshot as its first message. Holding the write
// lock keeps a concurrent Broadcast from slipping between the two.
func (h *Hub) Join(c *Client, snapshot func() ([]byte, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	data, err := snapshot()
	if err != nil {
		return err
	}
	c.send <- data
	h.clients[c] = true
	h.log.Debug("observer joined", zap.String("remote", c.remoteAddr), zap.Int("observers", len(h.clients)))
	return nil
}

// Leave unregisters c and closes its send channel
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Broadcast queues data for every observer. Observers too slow to keep up
// are disconnected since a missed delta leaves their replica wrong.
func (h *Hub) Broadcast(data []byte) {
	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range slow {
		h.log.Warn("observer too slow, disconnecting", zap.String("remote", c.remoteAddr))
		h.dropped++
		h.remove(c)
	}
	h.mu.Unlock()
}

// Close disconnects every observer and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.remove(c)
	}
}

// ClientCount returns the number of connected observers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many observers were cut off for falling behind
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Limiter caps websocket connections per IP and in total. It is shared by
// every hub behind one listener.
type Limiter struct {
	mu         sync.Mutex
	ipConns    map[string]int
	totalConns int
	perIP      int
	total      int
}

// NewLimiter creates a limiter with the default caps
func NewLimiter() *Limiter {
	return &Limiter{ipConns: make(map[string]int), perIP: maxConnsPerIP, total: maxTotalConns}
}

// CanAccept reports whether ip may open another connection
func (l *Limiter) CanAccept(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.totalConns >= l.total {
		return false
	}
	return l.ipConns[ip] < l.perIP
}

func (l *Limiter) TrackConnect(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ipConns[ip]++
	l.totalConns++
}

func (l *Limiter) TrackDisconnect(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ipConns[ip]--
	if l.ipConns[ip] <= 0 {
		delete(l.ipConns, ip)
	}
	l.totalConns--
}

// TotalConns returns the tracked connection count
func (l *Limiter) TotalConns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalConns
}
