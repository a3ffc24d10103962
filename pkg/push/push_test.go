package push

import (
	"testing"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/config"
)

func TestDisabledManagerNeverDelivers(t *testing.T) {
	m := NewManager(config.PushConfig{Subject: "mailto:ops@example.com"})

	if m.Enabled() {
		t.Fatal("Expected manager without VAPID keys to be disabled")
	}

	sub := &Subscription{Endpoint: "https://push.example.com/abc"}
	m.Subscribe("P1", sub)

	if m.Notify("P1", &Notification{Title: "hi", Body: "there"}) {
		t.Error("Disabled manager must report non-delivery")
	}
}

func TestNotifyWithoutSubscription(t *testing.T) {
	m := NewManager(config.PushConfig{
		VAPIDPublicKey:  "pub",
		VAPIDPrivateKey: "priv",
		Subject:         "mailto:ops@example.com",
	})

	if m.Notify("nobody", &Notification{Title: "hi"}) {
		t.Error("Expected non-delivery for an unknown parent")
	}
}

func TestSubscribeReplaceUnsubscribe(t *testing.T) {
	m := NewManager(config.PushConfig{})

	first := &Subscription{Endpoint: "https://push.example.com/one"}
	second := &Subscription{Endpoint: "https://push.example.com/two"}

	m.Subscribe("P1", first)
	m.Subscribe("P1", second)

	m.mu.RLock()
	got := m.subs["P1"]
	m.mu.RUnlock()
	if got != second {
		t.Error("Expected the newer subscription to replace the older one")
	}

	m.Unsubscribe("P1")
	m.mu.RLock()
	_, ok := m.subs["P1"]
	m.mu.RUnlock()
	if ok {
		t.Error("Expected subscription to be removed")
	}
}
