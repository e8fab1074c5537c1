package serverdb

import (
	"fmt"
)

// LoginEvent is a row in the login_events audit table.
type LoginEvent struct {
	ID         int64  `json:"id"`
	Role       string `json:"role"`
	Identifier string `json:"identifier"`
	Success    bool   `json:"success"`
	RemoteAddr string `json:"remote_addr"`
	CreatedAt  string `json:"created_at"`
}

// InsertLoginEvent records a login attempt.
func (db *ServerDB) InsertLoginEvent(role, identifier string, success bool, remoteAddr string) error {
	_, err := db.conn.Exec(
		`INSERT INTO login_events (role, identifier, success, remote_addr) VALUES (?, ?, ?, ?)`,
		role, identifier, success, remoteAddr,
	)
	if err != nil {
		return fmt.Errorf("insert login event: %w", err)
	}
	return nil
}

// RecentLoginEvents returns up to limit events for role, newest first.
// An empty role matches every role.
func (db *ServerDB) RecentLoginEvents(role string, limit int) ([]LoginEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		`SELECT id, role, identifier, success, remote_addr, created_at FROM login_events
		 WHERE (? = '' OR role = ?) ORDER BY id DESC LIMIT ?`,
		role, role, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query login events: %w", err)
	}
	defer rows.Close()

	var out []LoginEvent
	for rows.Next() {
		var e LoginEvent
		if err := rows.Scan(&e.ID, &e.Role, &e.Identifier, &e.Success, &e.RemoteAddr, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan login event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
