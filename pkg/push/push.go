// Package push delivers chat notifications to parent apps through the Web
// Push protocol. Subscriptions are kept in memory keyed by parent id; a lost
// subscription just means the next notification is skipped.
package push

import (
	"encoding/json"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/config"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/logger"
)

// Subscription is the browser/app push subscription registered by a parent
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Notification is the payload rendered by the receiving app
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Manager tracks subscriptions and sends notifications
type Manager struct {
	mu           sync.RWMutex
	subs         map[string]*Subscription // parentID -> subscription
	vapidPublic  string
	vapidPrivate string
	subject      string
}

// NewManager creates a push manager from VAPID settings
func NewManager(cfg config.PushConfig) *Manager {
	m := &Manager{
		subs:         make(map[string]*Subscription),
		vapidPublic:  cfg.VAPIDPublicKey,
		vapidPrivate: cfg.VAPIDPrivateKey,
		subject:      cfg.Subject,
	}
	if m.Enabled() {
		logger.Get().InfoWith("push notifications enabled")
	} else {
		logger.Get().InfoWith("VAPID keys not configured, push disabled")
	}
	return m
}

// Enabled reports whether VAPID keys are configured
func (m *Manager) Enabled() bool {
	return m.vapidPublic != "" && m.vapidPrivate != ""
}

// Subscribe registers or replaces a parent's push subscription
func (m *Manager) Subscribe(parentID string, sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[parentID] = sub
}

// Unsubscribe drops a parent's push subscription
func (m *Manager) Unsubscribe(parentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, parentID)
}

// Notify sends a notification to one parent. Delivery is best-effort: a
// missing subscription or transport failure only produces a log line.
// Returns true when the push was handed to the push service.
func (m *Manager) Notify(parentID string, n *Notification) bool {
	if !m.Enabled() {
		return false
	}

	m.mu.RLock()
	sub, ok := m.subs[parentID]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return false
	}

	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      m.subject,
		VAPIDPublicKey:  m.vapidPublic,
		VAPIDPrivateKey: m.vapidPrivate,
		TTL:             60,
	})
	if err != nil {
		logger.Get().WarnWith("push delivery failed", "parentId", parentID, "error", err)
		return false
	}
	defer resp.Body.Close()

	// 404/410 mean the subscription is gone for good
	if resp.StatusCode == 404 || resp.StatusCode == 410 {
		m.Unsubscribe(parentID)
		return false
	}
	return resp.StatusCode < 300
}
