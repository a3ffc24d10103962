// Package protocol defines the JSON frames exchanged over the two websocket
// relay paths. Frames are flat objects discriminated by a "type" field; field
// names match what the mobile apps already send, including the historical
// "targetchildId" spelling.
package protocol

import (
	"encoding/json"
	"time"
)

// MessageType discriminates inbound websocket frames
type MessageType string

const (
	// Shared by both engines
	MsgTypeRegisterChild  MessageType = "register_child"
	MsgTypeRegisterParent MessageType = "register_parent"

	// Presence engine
	MsgTypePing         MessageType = "ping"
	MsgTypeStatusUpdate MessageType = "status_update"

	// Location engine
	MsgTypeLocationUpdate MessageType = "location_update"
	MsgTypeQueryHistory   MessageType = "query_history"
	MsgTypeQueryChild     MessageType = "query_child"
)

// Envelope is the minimal decode used to pick a handler for a raw frame
type Envelope struct {
	Type MessageType `json:"type"`
}

// PeekType extracts the message type from a raw frame without decoding the
// full payload. Returns an error for non-JSON input.
func PeekType(raw []byte) (MessageType, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

// RegisterChild registers a child device on either engine
type RegisterChild struct {
	Type    MessageType `json:"type"`
	ChildID string      `json:"childId"`
}

// Ping is a child heartbeat on the presence engine
type Ping struct {
	Type    MessageType `json:"type"`
	ChildID string      `json:"childId"`
}

// RegisterParent registers a guardian and its subscription list
type RegisterParent struct {
	Type           MessageType `json:"type"`
	ParentID       string      `json:"parentId"`
	TargetChildIDs []string    `json:"targetchildId"`
}

// StatusUpdate carries the full online/offline map for one parent's
// subscribed children
type StatusUpdate struct {
	Type     MessageType     `json:"type"`
	Children map[string]bool `json:"children"`
}

// NewStatusUpdate builds a status_update frame
func NewStatusUpdate(children map[string]bool) *StatusUpdate {
	return &StatusUpdate{Type: MsgTypeStatusUpdate, Children: children}
}

// LocationUpdate is an inbound position report from a child device.
// Distance is the delta travelled since the previous report; History asks
// the server to append this sample to the child's track.
type LocationUpdate struct {
	Type      MessageType `json:"type"`
	ChildID   string      `json:"childId"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Speed     float64     `json:"speed"`
	MaxSpeed  float64     `json:"maxSpeed"`
	Distance  float64     `json:"distance"`
	History   bool        `json:"history,omitempty"`
}

// QueryHistory asks for a child's recorded track
type QueryHistory struct {
	Type          MessageType `json:"type"`
	TargetChildID string      `json:"targetchildId"`
}

// QueryChild asks for a child's current position on behalf of a parent
type QueryChild struct {
	Type          MessageType `json:"type"`
	TargetChildID string      `json:"targetchildId"`
	ParentID      string      `json:"parentId"`
}

// LocationPush is the outbound position frame fanned out to parents and
// returned from query_child
type LocationPush struct {
	ChildID   string  `json:"childId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	MaxSpeed  float64 `json:"maxSpeed"`
	Time      string  `json:"time"`
}

// TrackPoint is one entry of a history response
type TrackPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Time      string  `json:"time"`
}

// HistoryResponse answers query_history
type HistoryResponse struct {
	ChildID  string       `json:"childId"`
	History  []TrackPoint `json:"history"`
	Distance float64      `json:"distance"`
}

// ClockLabel formats a timestamp the way the apps display it: 12-hour clock,
// no leading zero on the hour, zero-padded minutes ("9:05 PM").
func ClockLabel(t time.Time) string {
	return t.Format("3:04 PM")
}
