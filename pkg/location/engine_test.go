package location

import (
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/protocol"
)

type fakeConn struct {
	mu       sync.Mutex
	sent     []any
	failSend bool
}

func (f *fakeConn) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return fmt.Errorf("send failed")
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) pushes() []*protocol.LocationPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*protocol.LocationPush
	for _, v := range f.sent {
		if p, ok := v.(*protocol.LocationPush); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeConn) histories() []*protocol.HistoryResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*protocol.HistoryResponse
	for _, v := range f.sent {
		if h, ok := v.(*protocol.HistoryResponse); ok {
			out = append(out, h)
		}
	}
	return out
}

func registerChild(e *Engine, conn *fakeConn, childID string) {
	e.HandleMessage(conn, []byte(`{"type":"register_child","childId":"`+childID+`"}`))
}

func registerParent(e *Engine, conn *fakeConn, parentID, targets string) {
	e.HandleMessage(conn, []byte(`{"type":"register_parent","parentId":"`+parentID+`","targetchildId":`+targets+`}`))
}

func sendUpdate(e *Engine, childID string, lat, lng, speed, maxSpeed, distance float64, history bool) {
	frame := fmt.Sprintf(
		`{"type":"location_update","childId":"%s","latitude":%v,"longitude":%v,"speed":%v,"maxSpeed":%v,"distance":%v,"history":%v}`,
		childID, lat, lng, speed, maxSpeed, distance, history)
	e.HandleMessage(&fakeConn{}, []byte(frame))
}

var clockRe = regexp.MustCompile(`^\d{1,2}:\d{2} (AM|PM)$`)

func TestUpdateRelaysToSubscribedParent(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")

	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["C1"]`)

	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)

	pushes := parentConn.pushes()
	if len(pushes) != 1 {
		t.Fatalf("Expected 1 push, got %d", len(pushes))
	}
	p := pushes[0]
	if p.ChildID != "C1" || p.Latitude != 31.5 || p.Longitude != 74.3 {
		t.Errorf("Unexpected push payload: %+v", p)
	}
	if p.Speed != 5 || p.MaxSpeed != 20 {
		t.Errorf("Speed fields not relayed verbatim: %+v", p)
	}
	if !clockRe.MatchString(p.Time) {
		t.Errorf("Time %q is not in clock format", p.Time)
	}
}

func TestUpdateNotRelayedToUnsubscribedParent(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")

	otherConn := &fakeConn{}
	registerParent(e, otherConn, "P2", `["C9"]`)

	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)

	if got := len(otherConn.pushes()); got != 0 {
		t.Errorf("Expected no pushes to unsubscribed parent, got %d", got)
	}
}

func TestUpdateForUnregisteredChildIsDropped(t *testing.T) {
	e := NewEngine(Options{})
	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["ghost"]`)

	sendUpdate(e, "ghost", 31.5, 74.3, 5, 20, 10, false)

	if got := len(parentConn.pushes()); got != 0 {
		t.Errorf("Expected no relay for unregistered child, got %d", got)
	}
	if e.Distance("ghost") != 0 {
		t.Error("Update must not create state for an unregistered child")
	}
}

func TestDistanceAccumulates(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")

	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)
	sendUpdate(e, "C1", 31.6, 74.4, 5, 20, 2.5, false)
	sendUpdate(e, "C1", 31.7, 74.5, 5, 20, 0, false)

	if got := e.Distance("C1"); got != 12.5 {
		t.Errorf("Distance = %v, want 12.5", got)
	}
}

func TestNegativeDistanceRejectedButSampleApplied(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")
	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["C1"]`)

	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)
	sendUpdate(e, "C1", 31.6, 74.4, 6, 20, -3, false)

	if got := e.Distance("C1"); got != 10 {
		t.Errorf("Distance = %v, want 10 after rejecting the negative delta", got)
	}

	// The sample itself is still relayed and cached
	pushes := parentConn.pushes()
	if len(pushes) != 2 {
		t.Fatalf("Expected 2 pushes, got %d", len(pushes))
	}
	if pushes[1].Latitude != 31.6 {
		t.Errorf("Expected second sample to be applied, got %+v", pushes[1])
	}
}

func TestHistoryAppendedOnlyWhenFlagged(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")

	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 1, false)
	sendUpdate(e, "C1", 31.6, 74.4, 5, 20, 1, true)
	sendUpdate(e, "C1", 31.7, 74.5, 5, 20, 1, true)

	queryConn := &fakeConn{}
	e.HandleMessage(queryConn, []byte(`{"type":"query_history","targetchildId":"C1"}`))

	histories := queryConn.histories()
	if len(histories) != 1 {
		t.Fatalf("Expected 1 history response, got %d", len(histories))
	}
	h := histories[0]
	if len(h.History) != 2 {
		t.Fatalf("Expected 2 track points, got %d", len(h.History))
	}
	if h.History[0].Latitude != 31.6 || h.History[1].Latitude != 31.7 {
		t.Errorf("Track points out of order: %+v", h.History)
	}
	if h.Distance != 3 {
		t.Errorf("Distance = %v, want 3", h.Distance)
	}
}

func TestQueryHistoryFallsBackToCurrentSample(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")
	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 4, false)

	queryConn := &fakeConn{}
	e.HandleMessage(queryConn, []byte(`{"type":"query_history","targetchildId":"C1"}`))

	histories := queryConn.histories()
	if len(histories) != 1 {
		t.Fatalf("Expected 1 history response, got %d", len(histories))
	}
	h := histories[0]
	if len(h.History) != 1 {
		t.Fatalf("Expected single-point fallback track, got %d points", len(h.History))
	}
	if h.History[0].Latitude != 31.5 || h.History[0].Longitude != 74.3 {
		t.Errorf("Fallback point does not match current sample: %+v", h.History[0])
	}
	if h.Distance != 4 {
		t.Errorf("Distance = %v, want 4", h.Distance)
	}
}

func TestQueryHistorySentinelForUnknownChild(t *testing.T) {
	e := NewEngine(Options{})

	queryConn := &fakeConn{}
	e.HandleMessage(queryConn, []byte(`{"type":"query_history","targetchildId":"nobody"}`))

	histories := queryConn.histories()
	if len(histories) != 1 {
		t.Fatalf("Expected 1 history response, got %d", len(histories))
	}
	h := histories[0]
	if h.ChildID != "nobody" {
		t.Errorf("ChildID = %q, want nobody", h.ChildID)
	}
	if len(h.History) != 2 {
		t.Fatalf("Expected 2 placeholder points, got %d", len(h.History))
	}
	for _, pt := range h.History {
		if pt.Time != "never" {
			t.Errorf("Placeholder point time = %q, want never", pt.Time)
		}
	}
	if h.Distance != 1 {
		t.Errorf("Placeholder distance = %v, want 1", h.Distance)
	}
}

func TestQueryChildReturnsCurrentSample(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")
	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)

	queryConn := &fakeConn{}
	e.HandleMessage(queryConn, []byte(`{"type":"query_child","targetchildId":"C1","parentId":"P1"}`))

	pushes := queryConn.pushes()
	if len(pushes) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(pushes))
	}
	if pushes[0].Latitude != 31.5 || pushes[0].Longitude != 74.3 {
		t.Errorf("Unexpected reply: %+v", pushes[0])
	}
}

func TestQueryChildSentinelForUnknownChild(t *testing.T) {
	e := NewEngine(Options{})

	queryConn := &fakeConn{}
	e.HandleMessage(queryConn, []byte(`{"type":"query_child","targetchildId":"nobody","parentId":"P1"}`))

	pushes := queryConn.pushes()
	if len(pushes) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(pushes))
	}
	p := pushes[0]
	if p.ChildID != "nobody" || p.Time != "never" {
		t.Errorf("Unexpected placeholder reply: %+v", p)
	}
	if p.Speed != 1 || p.MaxSpeed != 10 {
		t.Errorf("Placeholder speeds = %v/%v, want 1/10", p.Speed, p.MaxSpeed)
	}
}

func TestQueryReplyGoesOnlyToRequester(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")

	subscribed := &fakeConn{}
	registerParent(e, subscribed, "P1", `["C1"]`)
	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)

	before := len(subscribed.pushes())
	queryConn := &fakeConn{}
	e.HandleMessage(queryConn, []byte(`{"type":"query_child","targetchildId":"C1","parentId":"P2"}`))

	if got := len(subscribed.pushes()) - before; got != 0 {
		t.Errorf("Query reply leaked to a subscribed parent: %d extra pushes", got)
	}
	if got := len(queryConn.pushes()); got != 1 {
		t.Errorf("Expected requester to receive the reply, got %d", got)
	}
}

func TestReRegistrationResetsState(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")
	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, true)

	registerChild(e, &fakeConn{}, "C1")

	if got := e.Distance("C1"); got != 0 {
		t.Errorf("Distance = %v, want 0 after re-registration", got)
	}

	queryConn := &fakeConn{}
	e.HandleMessage(queryConn, []byte(`{"type":"query_history","targetchildId":"C1"}`))
	histories := queryConn.histories()
	if len(histories) != 1 {
		t.Fatalf("Expected 1 history response, got %d", len(histories))
	}
	if histories[0].History[0].Time != "never" {
		t.Error("Expected placeholder track after re-registration wiped history")
	}
}

func TestChildStateSurvivesDisconnect(t *testing.T) {
	e := NewEngine(Options{})
	childConn := &fakeConn{}
	registerChild(e, childConn, "C1")
	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 7, true)

	e.HandleDisconnect(childConn)

	if got := e.Distance("C1"); got != 7 {
		t.Errorf("Distance = %v, want 7 after disconnect", got)
	}

	queryConn := &fakeConn{}
	e.HandleMessage(queryConn, []byte(`{"type":"query_child","targetchildId":"C1","parentId":"P1"}`))
	pushes := queryConn.pushes()
	if len(pushes) != 1 || pushes[0].Latitude != 31.5 {
		t.Error("Expected cached sample to survive the child's disconnect")
	}
}

func TestParentDisconnectStopsRelay(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")

	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["C1"]`)
	e.HandleDisconnect(parentConn)

	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)

	if got := len(parentConn.pushes()); got != 0 {
		t.Errorf("Expected no pushes after parent disconnect, got %d", got)
	}
}

func TestPushOnRegisterSendsCachedSamples(t *testing.T) {
	e := NewEngine(Options{PushOnRegister: true})
	registerChild(e, &fakeConn{}, "C1")
	registerChild(e, &fakeConn{}, "C2")
	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)

	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["C1","C2"]`)

	// Only C1 has a cached sample; C2 has none yet
	pushes := parentConn.pushes()
	if len(pushes) != 1 {
		t.Fatalf("Expected 1 initial push, got %d", len(pushes))
	}
	if pushes[0].ChildID != "C1" {
		t.Errorf("Initial push for %q, want C1", pushes[0].ChildID)
	}
}

func TestNoPushOnRegisterByDefault(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")
	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)

	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["C1"]`)

	if got := len(parentConn.pushes()); got != 0 {
		t.Errorf("Expected no initial push, got %d", got)
	}
}

func TestSendFailureSkipsParentOnly(t *testing.T) {
	e := NewEngine(Options{})
	registerChild(e, &fakeConn{}, "C1")

	broken := &fakeConn{failSend: true}
	healthy := &fakeConn{}
	registerParent(e, broken, "P1", `["C1"]`)
	registerParent(e, healthy, "P2", `["C1"]`)

	sendUpdate(e, "C1", 31.5, 74.3, 5, 20, 10, false)

	if got := len(healthy.pushes()); got != 1 {
		t.Errorf("Expected healthy parent to receive the push, got %d", got)
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	e := NewEngine(Options{})
	conn := &fakeConn{}

	e.HandleMessage(conn, []byte(`{{{`))
	e.HandleMessage(conn, []byte(`{"type":"location_update"}`))
	e.HandleMessage(conn, []byte(`{"type":"teleport","childId":"C1"}`))

	if len(conn.sent) != 0 {
		t.Error("Malformed frames must not produce replies")
	}
}
