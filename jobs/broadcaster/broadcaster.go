// Package broadcaster pushes periodic JSON book snapshots to dashboard
// websocket clients. Consumers of the event topic use these snapshots
// to resynchronise after a detected gap.
package broadcaster

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"titan/domain/book"
	"titan/infra/metrics"
)

// Snapshot is the dashboard payload: top-of-book, depth-capped level
// arrays as [price, visible] pairs, and the engine counters.
type Snapshot struct {
	Type           string     `json:"type"`
	Timestamp      int64      `json:"timestamp"`
	BestBid        int64      `json:"best_bid"`
	BestAsk        int64      `json:"best_ask"`
	BidLevels      int        `json:"bid_levels"`
	AskLevels      int        `json:"ask_levels"`
	OrderCount     int        `json:"order_count"`
	TradesExecuted uint64     `json:"trades_executed"`
	Bids           [][2]int64 `json:"bids"`
	Asks           [][2]int64 `json:"asks"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Broadcaster struct {
	book     *book.Book
	depth    int
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Set

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(b *book.Book, depth int, interval time.Duration, log *zap.Logger, m *metrics.Set) *Broadcaster {
	return &Broadcaster{
		book:     b,
		depth:    depth,
		interval: interval,
		log:      log,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeWS upgrades a dashboard connection and registers it for
// snapshot fanout.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	n := len(b.clients)
	b.mu.Unlock()
	b.metrics.WSClients.Set(float64(n))
	b.log.Info("dashboard client connected", zap.Int("clients", n))

	go b.writePump(c)
	go b.readPump(c)
}

func (b *Broadcaster) readPump(c *client) {
	// Dashboards only listen; the read loop exists to notice closes.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			b.drop(c)
			return
		}
	}
}

func (b *Broadcaster) writePump(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.drop(c)
			return
		}
	}
	_ = c.conn.Close()
}

func (b *Broadcaster) drop(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.clients, c)
	n := len(b.clients)
	b.mu.Unlock()

	close(c.send)
	_ = c.conn.Close()
	b.metrics.WSClients.Set(float64(n))
}

// Run broadcasts a snapshot every interval until the context ends.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case <-ticker.C:
			b.broadcastOnce()
		}
	}
}

func (b *Broadcaster) broadcastOnce() {
	b.mu.Lock()
	idle := len(b.clients) == 0
	b.mu.Unlock()
	if idle {
		return
	}

	payload, err := json.Marshal(b.BuildSnapshot())
	if err != nil {
		b.log.Error("snapshot marshal failed", zap.Error(err))
		return
	}

	b.mu.Lock()
	var slow []*client
	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			// A client that cannot keep up with the broadcast
			// interval is dropped, never waited on.
			slow = append(slow, c)
		}
	}
	b.mu.Unlock()

	for _, c := range slow {
		b.log.Warn("dropping slow dashboard client")
		b.drop(c)
	}
}

// BuildSnapshot assembles the dashboard view of the book.
func (b *Broadcaster) BuildSnapshot() Snapshot {
	bids, asks := b.book.Depth(b.depth)

	s := Snapshot{
		Type:           "book_snapshot",
		Timestamp:      time.Now().UnixMilli(),
		BestBid:        b.book.BestBid(),
		BestAsk:        b.book.BestAsk(),
		BidLevels:      b.book.BidLevels(),
		AskLevels:      b.book.AskLevels(),
		OrderCount:     b.book.OrderCount(),
		TradesExecuted: b.book.TradesExecuted(),
		Bids:           make([][2]int64, 0, len(bids)),
		Asks:           make([][2]int64, 0, len(asks)),
	}
	for _, q := range bids {
		s.Bids = append(s.Bids, [2]int64{q.Price, q.Visible})
	}
	for _, q := range asks {
		s.Asks = append(s.Asks, [2]int64{q.Price, q.Visible})
	}
	return s
}

func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()
	for _, c := range clients {
		b.drop(c)
	}
}
