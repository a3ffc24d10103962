package storage

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/talhaxhahid/ChildCompass-Backend/pkg/errors"
)

// SQLiteStore implements Store interface using SQLite backend
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS parents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		verified_email INTEGER DEFAULT 0,
		verification_code TEXT,
		code_expires_at DATETIME,
		child_connection_strings TEXT DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_parents_email ON parents(email);

	CREATE TABLE IF NOT EXISTS children (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		gender TEXT NOT NULL,
		connection_string TEXT NOT NULL UNIQUE,
		battery INTEGER DEFAULT 100,
		app_usage TEXT DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_children_connection ON children(connection_string);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT,
		priority TEXT,
		datetime DATETIME NOT NULL,
		parent_email TEXT NOT NULL,
		connection_string TEXT NOT NULL,
		completed INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_email);
	CREATE INDEX IF NOT EXISTS idx_tasks_connection ON tasks(connection_string);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content TEXT NOT NULL,
		read INTEGER DEFAULT 0,
		push_delivered INTEGER DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		read_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, read);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateParent inserts a new parent account
func (s *SQLiteStore) CreateParent(p *Parent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := json.Marshal(p.ChildConnectionStrings)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		INSERT INTO parents (name, email, password_hash, verified_email,
			verification_code, code_expires_at, child_connection_strings)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Email, p.PasswordHash, boolToInt(p.VerifiedEmail),
		p.VerificationCode, p.CodeExpiresAt, string(links),
	)
	if err != nil {
		return err
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// GetParentByEmail fetches a parent account by email
func (s *SQLiteStore) GetParentByEmail(email string) (*Parent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, name, email, password_hash, verified_email,
			   COALESCE(verification_code, ''), code_expires_at,
			   child_connection_strings, created_at
		FROM parents WHERE email = ?`, email)

	return scanParent(row)
}

// UpdateParent persists verification state and the child link list
func (s *SQLiteStore) UpdateParent(p *Parent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := json.Marshal(p.ChildConnectionStrings)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE parents SET name = ?, password_hash = ?, verified_email = ?,
			verification_code = ?, code_expires_at = ?, child_connection_strings = ?
		WHERE email = ?`,
		p.Name, p.PasswordHash, boolToInt(p.VerifiedEmail),
		p.VerificationCode, p.CodeExpiresAt, string(links), p.Email,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrParentNotFound
	}
	return nil
}

// CreateChild inserts a new child record
func (s *SQLiteStore) CreateChild(c *Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.AppUsage == "" {
		c.AppUsage = "[]"
	}
	if c.Battery == 0 {
		c.Battery = 100
	}

	res, err := s.db.Exec(`
		INSERT INTO children (name, age, gender, connection_string, battery, app_usage)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Age, c.Gender, c.ConnectionString, c.Battery, c.AppUsage,
	)
	if err != nil {
		return err
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// GetChildByConnectionString fetches one child record
func (s *SQLiteStore) GetChildByConnectionString(cs string) (*Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, name, age, gender, connection_string, battery, app_usage, created_at
		FROM children WHERE connection_string = ?`, cs)

	c := &Child{}
	err := row.Scan(&c.ID, &c.Name, &c.Age, &c.Gender, &c.ConnectionString,
		&c.Battery, &c.AppUsage, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrChildNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetChildrenByConnectionStrings fetches all children matching the given
// connection strings; unknown strings are simply absent from the result
func (s *SQLiteStore) GetChildrenByConnectionStrings(cs []string) ([]*Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(cs) == 0 {
		return nil, nil
	}

	query := `SELECT id, name, age, gender, connection_string, battery, app_usage, created_at
		FROM children WHERE connection_string IN (?` + repeatPlaceholder(len(cs)-1) + `)`

	args := make([]any, len(cs))
	for i, v := range cs {
		args[i] = v
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var children []*Child
	for rows.Next() {
		c := &Child{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Age, &c.Gender, &c.ConnectionString,
			&c.Battery, &c.AppUsage, &c.CreatedAt); err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

// CreateTask inserts a task
func (s *SQLiteStore) CreateTask(t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO tasks (id, title, priority, datetime, parent_email, connection_string, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Priority, t.Datetime, t.ParentEmail, t.ConnectionString,
		boolToInt(t.Completed),
	)
	return err
}

// GetTasksByParentEmail lists a parent's tasks, soonest first
func (s *SQLiteStore) GetTasksByParentEmail(email string) ([]*Task, error) {
	return s.queryTasks(`SELECT id, title, priority, datetime, parent_email,
		connection_string, completed FROM tasks WHERE parent_email = ? ORDER BY datetime`, email)
}

// GetTasksByConnectionString lists tasks assigned to one child, soonest first
func (s *SQLiteStore) GetTasksByConnectionString(cs string) ([]*Task, error) {
	return s.queryTasks(`SELECT id, title, priority, datetime, parent_email,
		connection_string, completed FROM tasks WHERE connection_string = ? ORDER BY datetime`, cs)
}

func (s *SQLiteStore) queryTasks(query string, arg any) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t := &Task{}
		var completed int
		if err := rows.Scan(&t.ID, &t.Title, &t.Priority, &t.Datetime,
			&t.ParentEmail, &t.ConnectionString, &completed); err != nil {
			return nil, err
		}
		t.Completed = completed != 0
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetTaskCompleted toggles a task's completed flag
func (s *SQLiteStore) SetTaskCompleted(id string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tasks SET completed = ? WHERE id = ?`, boolToInt(completed), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task
func (s *SQLiteStore) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

// SaveMessage inserts a chat message
func (s *SQLiteStore) SaveMessage(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO messages (id, chat_id, sender_id, receiver_id, content,
			read, push_delivered, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.SenderID, m.ReceiverID, m.Content,
		boolToInt(m.Read), boolToInt(m.PushDelivered), m.Timestamp,
	)
	return err
}

// GetChatMessages lists messages in one chat, newest first
func (s *SQLiteStore) GetChatMessages(chatID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, chat_id, sender_id, receiver_id, content, read,
			   push_delivered, timestamp, read_at
		FROM messages WHERE chat_id = ? ORDER BY timestamp DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m := &Message{}
		var read, delivered int
		var readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.ReceiverID, &m.Content,
			&read, &delivered, &m.Timestamp, &readAt); err != nil {
			return nil, err
		}
		m.Read = read != 0
		m.PushDelivered = delivered != 0
		if readAt.Valid {
			m.ReadAt = &readAt.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkChatRead marks every unread message addressed to receiverID in chatID
func (s *SQLiteStore) MarkChatRead(chatID, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE messages SET read = 1, read_at = ?
		WHERE chat_id = ? AND receiver_id = ? AND read = 0`,
		time.Now(), chatID, receiverID)
	return err
}

// UnreadCount counts unread messages addressed to receiverID
func (s *SQLiteStore) UnreadCount(receiverID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND read = 0`,
		receiverID).Scan(&count)
	return count, err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanParent reads one parent row
func scanParent(row *sql.Row) (*Parent, error) {
	p := &Parent{}
	var verified int
	var expires sql.NullTime
	var links string

	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &verified,
		&p.VerificationCode, &expires, &links, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrParentNotFound
	}
	if err != nil {
		return nil, err
	}

	p.VerifiedEmail = verified != 0
	if expires.Valid {
		p.CodeExpiresAt = &expires.Time
	}
	if err := json.Unmarshal([]byte(links), &p.ChildConnectionStrings); err != nil {
		p.ChildConnectionStrings = nil
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// repeatPlaceholder returns n copies of ",?" for IN clauses
func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ",?"
	}
	return out
}
