// Package presence implements the online/offline relay engine behind the
// /activeStatus websocket path. It tracks a heartbeat timestamp per child and
// fans full status maps out to subscribed parents whenever a child's state
// changes.
package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/logger"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/metrics"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/protocol"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/relay"
)

// record is one child's presence state
type record struct {
	conn     relay.Conn
	lastPing time.Time
	online   bool
}

// subscription is one parent's connection and watch list
type subscription struct {
	conn    relay.Conn
	targets []string
}

// Options configures the engine
type Options struct {
	// SweepInterval is the liveness sweep period
	SweepInterval time.Duration
	// HeartbeatTimeout flips a silent child offline; must exceed SweepInterval
	HeartbeatTimeout time.Duration
	// PushOnRegister sends the full status map to a parent at registration
	PushOnRegister bool
}

// DefaultOptions matches the deployed sweep cadence: 1 s sweep, 8 s timeout.
func DefaultOptions() Options {
	return Options{
		SweepInterval:    time.Second,
		HeartbeatTimeout: 8 * time.Second,
		PushOnRegister:   true,
	}
}

// Engine owns the presence registries. All registry access, including the
// periodic sweep and outbound fan-out, happens under one mutex so a sweep can
// never race a registration or disconnect for the same child.
type Engine struct {
	mu      sync.Mutex
	childs  map[string]*record
	parents map[string]*subscription
	opts    Options
}

// NewEngine creates a presence engine
func NewEngine(opts Options) *Engine {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Second
	}
	if opts.HeartbeatTimeout <= opts.SweepInterval {
		opts.HeartbeatTimeout = 8 * time.Second
	}
	return &Engine{
		childs:  make(map[string]*record),
		parents: make(map[string]*subscription),
		opts:    opts,
	}
}

// Start runs the liveness sweep until ctx is cancelled
func (e *Engine) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.sweep(time.Now())
			case <-ctx.Done():
				logger.Get().InfoWith("presence sweep stopped")
				return
			}
		}
	}()
}

// sweep flips every online child whose heartbeat is older than the timeout
// to offline and notifies its subscribed parents once.
func (e *Engine) sweep(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for childID, rec := range e.childs {
		if rec.online && now.Sub(rec.lastPing) > e.opts.HeartbeatTimeout {
			rec.online = false
			metrics.OfflineSweeps.Inc()
			logger.Get().InfoWith("child timed out", "childId", childID)
			e.notifyParentsAboutLocked(childID)
		}
	}
}

// HandleMessage routes one inbound frame
func (e *Engine) HandleMessage(conn relay.Conn, raw []byte) {
	msgType, err := protocol.PeekType(raw)
	if err != nil {
		logger.Get().WarnWith("presence: dropping malformed frame", "error", err)
		metrics.MessagesDropped.WithLabelValues("presence").Inc()
		return
	}

	switch msgType {
	case protocol.MsgTypeRegisterChild:
		var msg protocol.RegisterChild
		if err := json.Unmarshal(raw, &msg); err != nil || msg.ChildID == "" {
			logger.Get().WarnWith("presence: bad register_child frame")
			metrics.MessagesDropped.WithLabelValues("presence").Inc()
			return
		}
		e.registerChild(conn, msg.ChildID)

	case protocol.MsgTypePing:
		var msg protocol.Ping
		if err := json.Unmarshal(raw, &msg); err != nil || msg.ChildID == "" {
			logger.Get().WarnWith("presence: bad ping frame")
			metrics.MessagesDropped.WithLabelValues("presence").Inc()
			return
		}
		e.heartbeat(msg.ChildID)

	case protocol.MsgTypeRegisterParent:
		var msg protocol.RegisterParent
		if err := json.Unmarshal(raw, &msg); err != nil || msg.ParentID == "" {
			logger.Get().WarnWith("presence: bad register_parent frame")
			metrics.MessagesDropped.WithLabelValues("presence").Inc()
			return
		}
		e.registerParent(conn, msg.ParentID, msg.TargetChildIDs)

	default:
		logger.Get().DebugWith("presence: unknown message type", "type", string(msgType))
		metrics.MessagesDropped.WithLabelValues("presence").Inc()
	}
}

// registerChild creates or silently replaces the presence record for childID
func (e *Engine) registerChild(conn relay.Conn, childID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.childs[childID] = &record{
		conn:     conn,
		lastPing: time.Now(),
		online:   true,
	}
	logger.Get().InfoWith("child registered for active status", "childId", childID)
	e.notifyParentsAboutLocked(childID)
}

// heartbeat refreshes a child's staleness timer; an offline child comes back
// online with exactly one broadcast. Heartbeats for unregistered children are
// dropped.
func (e *Engine) heartbeat(childID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.childs[childID]
	if !ok {
		return
	}

	rec.lastPing = time.Now()
	if !rec.online {
		rec.online = true
		logger.Get().InfoWith("child back online", "childId", childID)
		e.notifyParentsAboutLocked(childID)
	}
}

// registerParent creates or replaces the subscription for parentID
func (e *Engine) registerParent(conn relay.Conn, parentID string, targets []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &subscription{conn: conn, targets: targets}
	e.parents[parentID] = sub
	logger.Get().InfoWith("parent registered for active status", "parentId", parentID)

	if e.opts.PushOnRegister {
		e.sendStatusLocked(parentID, sub)
	}
}

// HandleDisconnect removes every record owned by conn. Ownership is resolved
// by connection identity so the close of a replaced connection cannot delete
// its successor's record. A departing child is flipped offline and announced
// once before deletion; a departing parent is removed quietly.
func (e *Engine) HandleDisconnect(conn relay.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for childID, rec := range e.childs {
		if rec.conn == conn {
			rec.online = false
			e.notifyParentsAboutLocked(childID)
			delete(e.childs, childID)
			logger.Get().InfoWith("child disconnected", "childId", childID)
		}
	}

	for parentID, sub := range e.parents {
		if sub.conn == conn {
			delete(e.parents, parentID)
			logger.Get().InfoWith("parent disconnected", "parentId", parentID)
		}
	}
}

// notifyParentsAboutLocked fans a full status map out to every parent
// subscribed to changedChildID. Caller holds e.mu.
func (e *Engine) notifyParentsAboutLocked(changedChildID string) {
	for parentID, sub := range e.parents {
		if !contains(sub.targets, changedChildID) {
			continue
		}
		e.sendStatusLocked(parentID, sub)
	}
}

// sendStatusLocked sends one parent its full status map. Caller holds e.mu.
// Each notification recomputes the whole map rather than a delta so a parent
// that missed an earlier frame still converges.
func (e *Engine) sendStatusLocked(parentID string, sub *subscription) {
	status := make(map[string]bool, len(sub.targets))
	for _, childID := range sub.targets {
		rec, ok := e.childs[childID]
		status[childID] = ok && rec.online
	}

	if err := sub.conn.Send(protocol.NewStatusUpdate(status)); err != nil {
		logger.Get().WarnWith("presence: status push failed", "parentId", parentID, "error", err)
		metrics.SendFailures.Inc()
		return
	}
	metrics.StatusBroadcasts.Inc()
}

// Online reports whether childID currently has an online presence record
func (e *Engine) Online(childID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.childs[childID]
	return ok && rec.online
}

// ConnectedChildren returns the number of registered presence records
func (e *Engine) ConnectedChildren() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.childs)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
