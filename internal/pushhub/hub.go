// Package pushhub implements the bidirectional push fabric from spec.md
// §4.3: two logical channels ("jobs", "performance") layered over
// websocket connections, each relaying matching EventBus events to its
// subscribers and, for "performance", routing client commands back
// through Coordinator.
package pushhub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/eventbus"
)

const (
	heartbeatInterval = 20 * time.Second
	idleTimeout       = 60 * time.Second
	writeTimeout      = 10 * time.Second
)

// Channel identifies one of the two logical push channels.
type Channel string

const (
	ChannelJobs        Channel = "jobs"
	ChannelPerformance Channel = "performance"
)

// Backend is the narrow slice of Coordinator that PushHub depends on.
// Client commands on the performance channel only ever mutate state
// through UpdatePerformanceControl; PushHub never writes to Store
// directly (spec.md §9).
type Backend interface {
	ListJobs(ctx context.Context) ([]entities.Job, error)
	CurrentPerformanceState(ctx context.Context) entities.PerformanceState
	UpdatePerformanceControl(ctx context.Context, patch entities.PerformanceControlPatch) (entities.PerformanceState, error)
}

// Hub manages sessions across both logical channels.
type Hub struct {
	bus     *eventbus.Bus
	backend Backend
	logger  *zap.Logger

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session

	register   chan *session
	unregister chan *session
}

// New constructs a Hub. Run must be started in its own goroutine before
// any connection is served.
func New(bus *eventbus.Bus, backend Backend, logger *zap.Logger) *Hub {
	return &Hub{
		bus:     bus,
		backend: backend,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions:   make(map[string]*session),
		register:   make(chan *session),
		unregister: make(chan *session),
	}
}

// Run drives session bookkeeping until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("push hub shutting down")
			return
		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s.id] = s
			h.mu.Unlock()
			h.logger.Info("push session connected", zap.String("id", s.id), zap.String("channel", string(s.channel)))
		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[s.id]; ok {
				delete(h.sessions, s.id)
			}
			h.mu.Unlock()
			s.close()
			h.logger.Info("push session disconnected", zap.String("id", s.id), zap.String("channel", string(s.channel)))
		}
	}
}

// HandleJobs upgrades the request to a websocket connection on the jobs
// channel.
func (h *Hub) HandleJobs(c *gin.Context) {
	h.serve(c, ChannelJobs)
}

// HandlePerformance upgrades the request to a websocket connection on the
// performance channel.
func (h *Hub) HandlePerformance(c *gin.Context) {
	h.serve(c, ChannelPerformance)
}

func (h *Hub) serve(c *gin.Context, channel Channel) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	pattern := eventbus.PatternJobs
	if channel == ChannelPerformance {
		pattern = eventbus.PatternPerformance
	}

	s := &session{
		id:      newSessionID(),
		channel: channel,
		conn:    conn,
		send:    make(chan Frame, 256),
		hub:     h,
		sub:     h.bus.Subscribe(pattern),
	}

	h.register <- s

	s.sendSnapshot(c.Request.Context())

	go s.writePump()
	go s.readPump()
	go s.relayLoop()
}

var sessionSeq struct {
	mu sync.Mutex
	n  uint64
}

func newSessionID() string {
	sessionSeq.mu.Lock()
	defer sessionSeq.mu.Unlock()
	sessionSeq.n++
	return time.Now().Format("20060102150405.000000000") + "-" + itoa(sessionSeq.n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
