// Package location implements the position relay engine behind the /location
// websocket path. It caches each child's latest sample, keeps an append-only
// track history with a cumulative distance counter, and relays every update
// to the parents subscribed to that child.
package location

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

// Fallback track returned when a child has no recorded data at all. Queries
// always get an answer; clients render the placeholder instead of erroring.
var sentinelTrack = []protocol.TrackPoint{
	{Latitude: 31.5204, Longitude: 74.3587, Time: "never"},
	{Latitude: 31.519790, Longitude: 74.358843, Time: "never"},
}

const sentinelDistance = 1

// sentinelLocation answers query_child when no sample exists
func sentinelLocation(childID string) *protocol.LocationPush {
	return &protocol.LocationPush{
		ChildID:   childID,
		Latitude:  31.5204,
		Longitude: 74.3587,
		Speed:     1,
		MaxSpeed:  10,
		Time:      "never",
	}
}

// childState is one child's location record. History is append-only and
// distance never decreases; both live until a fresh registration replaces
// the whole record.
type childState struct {
	conn     relay.Conn
	current  *protocol.LocationPush
	history  []protocol.TrackPoint
	distance float64
}

// subscription is one parent's connection and watch list
type subscription struct {
	conn    relay.Conn
	targets []string
}

// Options configures the engine
type Options struct {
	// PushOnRegister sends cached current samples to a parent at registration
	PushOnRegister bool
}

// Engine owns the location registries; one mutex serializes handlers and
// fan-out, mirroring the presence engine's locking discipline.
type Engine struct {
	mu      sync.Mutex
	childs  map[string]*childState
	parents map[string]*subscription
	opts    Options
}

// NewEngine creates a location engine
func NewEngine(opts Options) *Engine {
	return &Engine{
		childs:  make(map[string]*childState),
		parents: make(map[string]*subscription),
		opts:    opts,
	}
}

// Start exists for symmetry with the presence engine; the location engine has
// no periodic work.
func (e *Engine) Start(ctx context.Context) {}

// HandleMessage routes one inbound frame
func (e *Engine) HandleMessage(conn relay.Conn, raw []byte) {
	msgType, err := protocol.PeekType(raw)
	if err != nil {
		logger.Get().WarnWith("location: dropping malformed frame", "error", err)
		metrics.MessagesDropped.WithLabelValues("location").Inc()
		return
	}

	switch msgType {
	case protocol.MsgTypeRegisterChild:
		var msg protocol.RegisterChild
		if err := json.Unmarshal(raw, &msg); err != nil || msg.ChildID == "" {
			logger.Get().WarnWith("location: bad register_child frame")
			metrics.MessagesDropped.WithLabelValues("location").Inc()
			return
		}
		e.registerChild(conn, msg.ChildID)

	case protocol.MsgTypeLocationUpdate:
		var msg protocol.LocationUpdate
		if err := json.Unmarshal(raw, &msg); err != nil || msg.ChildID == "" {
			logger.Get().WarnWith("location: bad location_update frame")
			metrics.MessagesDropped.WithLabelValues("location").Inc()
			return
		}
		e.update(&msg)

	case protocol.MsgTypeRegisterParent:
		var msg protocol.RegisterParent
		if err := json.Unmarshal(raw, &msg); err != nil || msg.ParentID == "" {
			logger.Get().WarnWith("location: bad register_parent frame")
			metrics.MessagesDropped.WithLabelValues("location").Inc()
			return
		}
		e.registerParent(conn, msg.ParentID, msg.TargetChildIDs)

	case protocol.MsgTypeQueryHistory:
		var msg protocol.QueryHistory
		if err := json.Unmarshal(raw, &msg); err != nil || msg.TargetChildID == "" {
			logger.Get().WarnWith("location: bad query_history frame")
			metrics.MessagesDropped.WithLabelValues("location").Inc()
			return
		}
		e.queryHistory(conn, msg.TargetChildID)

	case protocol.MsgTypeQueryChild:
		var msg protocol.QueryChild
		if err := json.Unmarshal(raw, &msg); err != nil || msg.TargetChildID == "" {
			logger.Get().WarnWith("location: bad query_child frame")
			metrics.MessagesDropped.WithLabelValues("location").Inc()
			return
		}
		e.queryChild(conn, msg.TargetChildID)

	default:
		logger.Get().DebugWith("location: unknown message type", "type", string(msgType))
		metrics.MessagesDropped.WithLabelValues("location").Inc()
	}
}

// registerChild creates a fresh state for childID, replacing any previous
// record along with its history and distance (fresh-session semantics).
func (e *Engine) registerChild(conn relay.Conn, childID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.childs[childID] = &childState{conn: conn}
	logger.Get().InfoWith("child registered for location", "childId", childID)
}

// update applies one position report and relays it to subscribed parents.
// Updates for unregistered children are dropped.
func (e *Engine) update(msg *protocol.LocationUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.childs[msg.ChildID]
	if !ok {
		logger.Get().DebugWith("location: update for unregistered child", "childId", msg.ChildID)
		return
	}

	now := protocol.ClockLabel(time.Now())
	state.current = &protocol.LocationPush{
		ChildID:   msg.ChildID,
		Latitude:  msg.Latitude,
		Longitude: msg.Longitude,
		Speed:     msg.Speed,
		MaxSpeed:  msg.MaxSpeed,
		Time:      now,
	}

	// Negative deltas would let the cumulative total shrink; reject them so
	// the counter stays monotonic. The sample itself is still applied.
	if msg.Distance >= 0 {
		state.distance += msg.Distance
	} else {
		logger.Get().WarnWith("location: rejecting negative distance delta",
			"childId", msg.ChildID, "distance", msg.Distance)
	}

	if msg.History {
		state.history = append(state.history, protocol.TrackPoint{
			Latitude:  msg.Latitude,
			Longitude: msg.Longitude,
			Time:      now,
		})
	}

	e.relayLocationLocked(msg.ChildID, state.current)
}

// relayLocationLocked pushes the sample to every parent subscribed to
// childID. A failed push is logged and skipped; remaining parents still get
// theirs. Caller holds e.mu.
func (e *Engine) relayLocationLocked(childID string, sample *protocol.LocationPush) {
	for parentID, sub := range e.parents {
		if !contains(sub.targets, childID) {
			continue
		}
		if err := sub.conn.Send(sample); err != nil {
			logger.Get().WarnWith("location: push failed", "parentId", parentID, "error", err)
			metrics.SendFailures.Inc()
			continue
		}
		metrics.LocationPushes.Inc()
	}
}

// registerParent creates or replaces the subscription for parentID
func (e *Engine) registerParent(conn relay.Conn, parentID string, targets []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.parents[parentID] = &subscription{conn: conn, targets: targets}
	logger.Get().InfoWith("parent registered for location", "parentId", parentID)

	if !e.opts.PushOnRegister {
		return
	}
	for _, childID := range targets {
		if state, ok := e.childs[childID]; ok && state.current != nil {
			if err := conn.Send(state.current); err != nil {
				logger.Get().WarnWith("location: initial push failed", "parentId", parentID, "error", err)
				metrics.SendFailures.Inc()
			}
		}
	}
}

// queryHistory answers with the child's track, falling back to a
// single-point track built from the current sample, then to the sentinel
// track. The response goes only to the requesting connection.
func (e *Engine) queryHistory(conn relay.Conn, childID string) {
	e.mu.Lock()
	resp := e.historyResponseLocked(childID)
	e.mu.Unlock()

	if err := conn.Send(resp); err != nil {
		logger.Get().WarnWith("location: history reply failed", "childId", childID, "error", err)
		metrics.SendFailures.Inc()
	}
}

// historyResponseLocked builds the query_history answer. Caller holds e.mu.
func (e *Engine) historyResponseLocked(childID string) *protocol.HistoryResponse {
	state, ok := e.childs[childID]
	if ok && len(state.history) > 0 {
		return &protocol.HistoryResponse{
			ChildID:  childID,
			History:  state.history,
			Distance: state.distance,
		}
	}
	if ok && state.current != nil {
		return &protocol.HistoryResponse{
			ChildID: childID,
			History: []protocol.TrackPoint{{
				Latitude:  state.current.Latitude,
				Longitude: state.current.Longitude,
				Time:      state.current.Time,
			}},
			Distance: state.distance,
		}
	}
	logger.Get().DebugWith("location: history query answered with placeholder", "childId", childID)
	return &protocol.HistoryResponse{
		ChildID:  childID,
		History:  sentinelTrack,
		Distance: sentinelDistance,
	}
}

// queryChild answers with the child's current sample or the fixed placeholder
// point. The response goes only to the requesting connection.
func (e *Engine) queryChild(conn relay.Conn, childID string) {
	e.mu.Lock()
	var resp *protocol.LocationPush
	if state, ok := e.childs[childID]; ok && state.current != nil {
		resp = state.current
	} else {
		resp = sentinelLocation(childID)
	}
	e.mu.Unlock()

	if err := conn.Send(resp); err != nil {
		logger.Get().WarnWith("location: query reply failed", "childId", childID, "error", err)
		metrics.SendFailures.Inc()
	}
}

// HandleDisconnect removes parent subscriptions owned by conn. A child's
// location state outlives its connection: history and distance stay queryable
// until the child registers again with a fresh session.
func (e *Engine) HandleDisconnect(conn relay.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for parentID, sub := range e.parents {
		if sub.conn == conn {
			delete(e.parents, parentID)
			logger.Get().InfoWith("parent disconnected from location", "parentId", parentID)
		}
	}
}

// Distance returns the cumulative distance recorded for childID
func (e *Engine) Distance(childID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.childs[childID]; ok {
		return state.distance
	}
	return 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
