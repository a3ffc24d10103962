package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/go-sql-driver/mysql"

	apperrors "github.com/talhaxhahid/ChildCompass-Backend/pkg/errors"
)

// MySQLStore implements Store interface using MySQL backend
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed store. The DSN must enable
// parseTime so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	s := &MySQLStore{db: db}
	if err := s.initDB(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) initDB() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS parents (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			verified_email TINYINT DEFAULT 0,
			verification_code VARCHAR(16),
			code_expires_at DATETIME NULL,
			child_connection_strings TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS children (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			age INT NOT NULL,
			gender VARCHAR(8) NOT NULL,
			connection_string VARCHAR(16) NOT NULL UNIQUE,
			battery INT DEFAULT 100,
			app_usage TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255),
			priority VARCHAR(32),
			datetime DATETIME NOT NULL,
			parent_email VARCHAR(255) NOT NULL,
			connection_string VARCHAR(16) NOT NULL,
			completed TINYINT DEFAULT 0,
			INDEX idx_tasks_parent (parent_email),
			INDEX idx_tasks_connection (connection_string)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR(64) PRIMARY KEY,
			chat_id VARCHAR(255) NOT NULL,
			sender_id VARCHAR(255) NOT NULL,
			receiver_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			` + "`read`" + ` TINYINT DEFAULT 0,
			push_delivered TINYINT DEFAULT 0,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			read_at DATETIME NULL,
			INDEX idx_messages_chat (chat_id, timestamp),
			INDEX idx_messages_receiver (receiver_id, ` + "`read`" + `)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) CreateParent(p *Parent) error {
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

func (s *MySQLStore) GetParentByEmail(email string) (*Parent, error) {
	row := s.db.QueryRow(`
		SELECT id, name, email, password_hash, verified_email,
			   COALESCE(verification_code, ''), code_expires_at,
			   COALESCE(child_connection_strings, '[]'), created_at
		FROM parents WHERE email = ?`, email)
	return scanParent(row)
}

func (s *MySQLStore) UpdateParent(p *Parent) error {
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

func (s *MySQLStore) CreateChild(c *Child) error {
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

func (s *MySQLStore) GetChildByConnectionString(cs string) (*Child, error) {
	row := s.db.QueryRow(`
		SELECT id, name, age, gender, connection_string, battery,
			   COALESCE(app_usage, '[]'), created_at
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

func (s *MySQLStore) GetChildrenByConnectionStrings(cs []string) ([]*Child, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	query := `SELECT id, name, age, gender, connection_string, battery,
		COALESCE(app_usage, '[]'), created_at
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

func (s *MySQLStore) CreateTask(t *Task) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, title, priority, datetime, parent_email, connection_string, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Priority, t.Datetime, t.ParentEmail, t.ConnectionString,
		boolToInt(t.Completed),
	)
	return err
}

func (s *MySQLStore) GetTasksByParentEmail(email string) ([]*Task, error) {
	return s.queryTasks(`SELECT id, title, priority, datetime, parent_email,
		connection_string, completed FROM tasks WHERE parent_email = ? ORDER BY datetime`, email)
}

func (s *MySQLStore) GetTasksByConnectionString(cs string) ([]*Task, error) {
	return s.queryTasks(`SELECT id, title, priority, datetime, parent_email,
		connection_string, completed FROM tasks WHERE connection_string = ? ORDER BY datetime`, cs)
}

func (s *MySQLStore) queryTasks(query string, arg any) ([]*Task, error) {
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

func (s *MySQLStore) SetTaskCompleted(id string, completed bool) error {
	res, err := s.db.Exec(`UPDATE tasks SET completed = ? WHERE id = ?`, boolToInt(completed), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

func (s *MySQLStore) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

func (s *MySQLStore) SaveMessage(m *Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (id, chat_id, sender_id, receiver_id, content,
			`+"`read`"+`, push_delivered, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.SenderID, m.ReceiverID, m.Content,
		boolToInt(m.Read), boolToInt(m.PushDelivered), m.Timestamp,
	)
	return err
}

func (s *MySQLStore) GetChatMessages(chatID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, chat_id, sender_id, receiver_id, content, `+"`read`"+`,
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

func (s *MySQLStore) MarkChatRead(chatID, receiverID string) error {
	_, err := s.db.Exec(`
		UPDATE messages SET `+"`read`"+` = 1, read_at = ?
		WHERE chat_id = ? AND receiver_id = ? AND `+"`read`"+` = 0`,
		time.Now(), chatID, receiverID)
	return err
}

func (s *MySQLStore) UnreadCount(receiverID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND `+"`read`"+` = 0`,
		receiverID).Scan(&count)
	return count, err
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
