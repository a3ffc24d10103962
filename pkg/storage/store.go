package storage

import (
	"time"
)

// Parent is a guardian account. Credentials and verification state never
// leave the server.
type Parent struct {
	ID                     int64      `json:"id"`
	Name                   string     `json:"name"`
	Email                  string     `json:"email"`
	PasswordHash           string     `json:"-"`
	VerifiedEmail          bool       `json:"verifiedEmail"`
	VerificationCode       string     `json:"-"`
	CodeExpiresAt          *time.Time `json:"-"`
	ChildConnectionStrings []string   `json:"childConnectionStrings"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// Child is a registered child device record
type Child struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Age              int       `json:"age"`
	Gender           string    `json:"gender"` // "boy" | "girl"
	ConnectionString string    `json:"connectionString"`
	Battery          int       `json:"battery"`
	AppUsage         string    `json:"appUsage"` // JSON array, opaque to the server
	CreatedAt        time.Time `json:"createdAt"`
}

// Task is a reminder assigned by a parent to one of its children
type Task struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Priority         string    `json:"priority"`
	Datetime         time.Time `json:"datetime"`
	ParentEmail      string    `json:"parentEmail"`
	ConnectionString string    `json:"connectionString"`
	Completed        bool      `json:"completed"`
}

// Message is one chat message between two guardians
type Message struct {
	ID            string     `json:"id"`
	ChatID        string     `json:"chatId"`
	SenderID      string     `json:"senderId"`
	ReceiverID    string     `json:"receiverId"`
	Content       string     `json:"content"`
	Read          bool       `json:"read"`
	PushDelivered bool       `json:"pushDelivered"`
	Timestamp     time.Time  `json:"timestamp"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
}

// Store defines the interface for persistent storage operations
type Store interface {
	// Parent operations
	CreateParent(p *Parent) error
	GetParentByEmail(email string) (*Parent, error)
	UpdateParent(p *Parent) error

	// Child operations
	CreateChild(c *Child) error
	GetChildByConnectionString(cs string) (*Child, error)
	GetChildrenByConnectionStrings(cs []string) ([]*Child, error)

	// Task operations
	CreateTask(t *Task) error
	GetTasksByParentEmail(email string) ([]*Task, error)
	GetTasksByConnectionString(cs string) ([]*Task, error)
	SetTaskCompleted(id string, completed bool) error
	DeleteTask(id string) error

	// Message operations
	SaveMessage(m *Message) error
	GetChatMessages(chatID string, limit int) ([]*Message, error)
	MarkChatRead(chatID, receiverID string) error
	UnreadCount(receiverID string) (int, error)

	// Lifecycle
	Close() error
}
