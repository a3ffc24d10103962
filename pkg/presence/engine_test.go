package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/protocol"
)

// fakeConn records everything sent to it
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

func (f *fakeConn) statusUpdates() []*protocol.StatusUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updates []*protocol.StatusUpdate
	for _, v := range f.sent {
		if su, ok := v.(*protocol.StatusUpdate); ok {
			updates = append(updates, su)
		}
	}
	return updates
}

func newTestEngine() *Engine {
	return NewEngine(Options{
		SweepInterval:    time.Second,
		HeartbeatTimeout: 8 * time.Second,
		PushOnRegister:   true,
	})
}

func registerChild(e *Engine, conn *fakeConn, childID string) {
	e.HandleMessage(conn, []byte(`{"type":"register_child","childId":"`+childID+`"}`))
}

func registerParent(e *Engine, conn *fakeConn, parentID string, targets string) {
	e.HandleMessage(conn, []byte(`{"type":"register_parent","parentId":"`+parentID+`","targetchildId":`+targets+`}`))
}

func TestRegisterChildIsOnline(t *testing.T) {
	e := newTestEngine()
	registerChild(e, &fakeConn{}, "C1")

	if !e.Online("C1") {
		t.Error("Expected C1 to be online after registration")
	}
}

func TestPingWithinTimeoutKeepsOnline(t *testing.T) {
	e := newTestEngine()
	registerChild(e, &fakeConn{}, "C1")

	e.HandleMessage(&fakeConn{}, []byte(`{"type":"ping","childId":"C1"}`))
	e.sweep(time.Now().Add(7 * time.Second))

	if !e.Online("C1") {
		t.Error("Expected C1 to stay online after a recent ping")
	}
}

func TestSweepFlipsStaleChildOffline(t *testing.T) {
	e := newTestEngine()
	parentConn := &fakeConn{}
	registerChild(e, &fakeConn{}, "C1")
	registerParent(e, parentConn, "P1", `["C1"]`)

	before := len(parentConn.statusUpdates())

	e.sweep(time.Now().Add(9 * time.Second))

	if e.Online("C1") {
		t.Error("Expected C1 to be offline after heartbeat timeout")
	}

	updates := parentConn.statusUpdates()
	if len(updates) != before+1 {
		t.Fatalf("Expected exactly 1 offline notification, got %d", len(updates)-before)
	}
	last := updates[len(updates)-1]
	if online, ok := last.Children["C1"]; !ok || online {
		t.Errorf("Expected status_update with C1=false, got %v", last.Children)
	}
}

func TestSweepNotifiesOnlyOnce(t *testing.T) {
	e := newTestEngine()
	parentConn := &fakeConn{}
	registerChild(e, &fakeConn{}, "C1")
	registerParent(e, parentConn, "P1", `["C1"]`)

	before := len(parentConn.statusUpdates())

	stale := time.Now().Add(9 * time.Second)
	e.sweep(stale)
	e.sweep(stale.Add(time.Second))
	e.sweep(stale.Add(2 * time.Second))

	if got := len(parentConn.statusUpdates()) - before; got != 1 {
		t.Errorf("Expected 1 notification for a single offline transition, got %d", got)
	}
}

func TestHeartbeatBringsOfflineChildBack(t *testing.T) {
	e := newTestEngine()
	parentConn := &fakeConn{}
	registerChild(e, &fakeConn{}, "C1")
	registerParent(e, parentConn, "P1", `["C1"]`)

	e.sweep(time.Now().Add(9 * time.Second))
	if e.Online("C1") {
		t.Fatal("Expected C1 offline before heartbeat")
	}

	before := len(parentConn.statusUpdates())
	e.HandleMessage(&fakeConn{}, []byte(`{"type":"ping","childId":"C1"}`))

	if !e.Online("C1") {
		t.Error("Expected C1 back online after heartbeat")
	}
	updates := parentConn.statusUpdates()
	if len(updates) != before+1 {
		t.Fatalf("Expected exactly 1 online notification, got %d", len(updates)-before)
	}
	if online := updates[len(updates)-1].Children["C1"]; !online {
		t.Error("Expected status_update with C1=true")
	}
}

func TestHeartbeatWhileOnlineNeverBroadcasts(t *testing.T) {
	e := newTestEngine()
	parentConn := &fakeConn{}
	registerChild(e, &fakeConn{}, "C1")
	registerParent(e, parentConn, "P1", `["C1"]`)

	before := len(parentConn.statusUpdates())
	for i := 0; i < 5; i++ {
		e.HandleMessage(&fakeConn{}, []byte(`{"type":"ping","childId":"C1"}`))
	}

	if got := len(parentConn.statusUpdates()) - before; got != 0 {
		t.Errorf("Expected no broadcasts for pings while online, got %d", got)
	}
}

func TestPingForUnregisteredChildIsDropped(t *testing.T) {
	e := newTestEngine()
	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["ghost"]`)

	before := len(parentConn.statusUpdates())
	e.HandleMessage(&fakeConn{}, []byte(`{"type":"ping","childId":"ghost"}`))

	if e.Online("ghost") {
		t.Error("Ping must not create a presence record")
	}
	if got := len(parentConn.statusUpdates()) - before; got != 0 {
		t.Errorf("Expected no broadcasts, got %d", got)
	}
}

func TestRegisterParentPushesInitialStatus(t *testing.T) {
	e := newTestEngine()
	registerChild(e, &fakeConn{}, "C1")

	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["C1","C2"]`)

	updates := parentConn.statusUpdates()
	if len(updates) != 1 {
		t.Fatalf("Expected initial status push, got %d updates", len(updates))
	}
	if !updates[0].Children["C1"] {
		t.Error("Expected C1=true in initial status")
	}
	if updates[0].Children["C2"] {
		t.Error("Expected C2=false for never-registered child")
	}
}

func TestNoInitialPushWhenDisabled(t *testing.T) {
	e := NewEngine(Options{
		SweepInterval:    time.Second,
		HeartbeatTimeout: 8 * time.Second,
		PushOnRegister:   false,
	})
	registerChild(e, &fakeConn{}, "C1")

	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["C1"]`)

	if got := len(parentConn.statusUpdates()); got != 0 {
		t.Errorf("Expected no initial push, got %d updates", got)
	}
}

func TestUnsubscribedParentNotNotified(t *testing.T) {
	e := newTestEngine()
	registerChild(e, &fakeConn{}, "C1")

	otherConn := &fakeConn{}
	registerParent(e, otherConn, "P2", `["C9"]`)

	before := len(otherConn.statusUpdates())
	e.sweep(time.Now().Add(9 * time.Second))

	if got := len(otherConn.statusUpdates()) - before; got != 0 {
		t.Errorf("Expected no notification for unsubscribed parent, got %d", got)
	}
}

func TestChildDisconnectNotifiesAndRemoves(t *testing.T) {
	e := newTestEngine()
	childConn := &fakeConn{}
	parentConn := &fakeConn{}
	registerChild(e, childConn, "C1")
	registerParent(e, parentConn, "P1", `["C1"]`)

	before := len(parentConn.statusUpdates())
	e.HandleDisconnect(childConn)

	updates := parentConn.statusUpdates()
	if len(updates) != before+1 {
		t.Fatalf("Expected exactly 1 disconnect notification, got %d", len(updates)-before)
	}
	if updates[len(updates)-1].Children["C1"] {
		t.Error("Expected C1=false after disconnect")
	}
	if e.ConnectedChildren() != 0 {
		t.Error("Expected presence record to be removed")
	}

	// A later sweep must not notify again for the deleted record
	e.sweep(time.Now().Add(20 * time.Second))
	if got := len(parentConn.statusUpdates()) - before; got != 1 {
		t.Errorf("Expected no further notifications, got %d total", got)
	}
}

func TestParentDisconnectIsSilent(t *testing.T) {
	e := newTestEngine()
	p1Conn := &fakeConn{}
	p2Conn := &fakeConn{}
	registerChild(e, &fakeConn{}, "C1")
	registerParent(e, p1Conn, "P1", `["C1"]`)
	registerParent(e, p2Conn, "P2", `["C1"]`)

	before := len(p2Conn.statusUpdates())
	e.HandleDisconnect(p1Conn)

	if got := len(p2Conn.statusUpdates()) - before; got != 0 {
		t.Errorf("Expected no notification on parent disconnect, got %d", got)
	}
}

func TestReRegistrationReplacesConnection(t *testing.T) {
	e := newTestEngine()
	oldConn := &fakeConn{}
	newConn := &fakeConn{}
	registerChild(e, oldConn, "C1")
	registerChild(e, newConn, "C1")

	// Closing the replaced connection must not delete the fresh record
	e.HandleDisconnect(oldConn)

	if !e.Online("C1") {
		t.Error("Expected C1 to survive close of its replaced connection")
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	e := newTestEngine()
	conn := &fakeConn{}

	e.HandleMessage(conn, []byte(`not json at all`))
	e.HandleMessage(conn, []byte(`{"type":"register_child"}`))
	e.HandleMessage(conn, []byte(`{"type":"warp_drive","childId":"C1"}`))

	if e.ConnectedChildren() != 0 {
		t.Error("Malformed frames must not create records")
	}
	if len(conn.sent) != 0 {
		t.Error("Malformed frames must not produce replies")
	}
}

func TestSendFailureDoesNotAffectOtherParents(t *testing.T) {
	e := newTestEngine()
	registerChild(e, &fakeConn{}, "C1")

	broken := &fakeConn{failSend: true}
	healthy := &fakeConn{}
	registerParent(e, broken, "P1", `["C1"]`)
	registerParent(e, healthy, "P2", `["C1"]`)

	before := len(healthy.statusUpdates())
	e.sweep(time.Now().Add(9 * time.Second))

	if got := len(healthy.statusUpdates()) - before; got != 1 {
		t.Errorf("Expected healthy parent to still get its notification, got %d", got)
	}
}

func TestStatusMapCoversFullSubscription(t *testing.T) {
	e := newTestEngine()
	registerChild(e, &fakeConn{}, "C1")
	registerChild(e, &fakeConn{}, "C2")

	parentConn := &fakeConn{}
	registerParent(e, parentConn, "P1", `["C1","C2","C3"]`)

	updates := parentConn.statusUpdates()
	if len(updates) != 1 {
		t.Fatalf("Expected 1 initial update, got %d", len(updates))
	}
	want := map[string]bool{"C1": true, "C2": true, "C3": false}
	for id, online := range want {
		if updates[0].Children[id] != online {
			t.Errorf("Children[%s] = %v, want %v", id, updates[0].Children[id], online)
		}
	}
	if len(updates[0].Children) != 3 {
		t.Errorf("Expected full map of 3 children, got %d", len(updates[0].Children))
	}
}
