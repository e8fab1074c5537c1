package serverdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/marcus/imtti/internal/models"
)

// secretFields are accepted on create but never stored in or returned with a record.
var secretFields = []string{"password"}

// CreateRecord stores rec in collection and returns it with its assigned id.
// A client supplied id is ignored. When rec carries a password, it must also
// carry an email; the pair becomes a login credential for the collection.
func (db *ServerDB) CreateRecord(collection models.Collection, rec models.Record) (models.Record, error) {
	if !collection.IsValid() {
		return nil, fmt.Errorf("%w: unknown collection %q", ErrInvalidRecord, collection)
	}

	data := rec.Clone()
	if data == nil {
		data = models.Record{}
	}
	delete(data, "id")

	password, hasPassword := data["password"].(string)
	for _, f := range secretFields {
		delete(data, f)
	}

	var email string
	var hash []byte
	if hasPassword {
		if password == "" {
			return nil, fmt.Errorf("%w: password must not be empty", ErrInvalidRecord)
		}
		email = normalizeEmail(data["email"])
		if email == "" {
			return nil, fmt.Errorf("%w: email is required with a password", ErrInvalidRecord)
		}
		data["email"] = email
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if hasPassword {
		var exists int
		err := tx.QueryRow(`SELECT COUNT(*) FROM credentials WHERE collection = ? AND email = ?`,
			string(collection), email).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if exists > 0 {
			return nil, ErrDuplicateEmail
		}
	}

	res, err := tx.Exec(`INSERT INTO records (collection, data) VALUES (?, ?)`, string(collection), string(encoded))
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("record id: %w", err)
	}

	if hasPassword {
		_, err := tx.Exec(`INSERT INTO credentials (record_id, collection, email, password_hash) VALUES (?, ?, ?, ?)`,
			id, string(collection), email, string(hash))
		if err != nil {
			return nil, fmt.Errorf("insert credentials: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	data["id"] = id
	return data, nil
}

// ListRecords returns every record in collection, oldest first.
func (db *ServerDB) ListRecords(collection models.Collection) ([]models.Record, error) {
	rows, err := db.conn.Query(`SELECT id, data FROM records WHERE collection = ? ORDER BY id`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRecord returns one record, or nil if not found.
func (db *ServerDB) GetRecord(collection models.Collection, id int64) (models.Record, error) {
	row := db.conn.QueryRow(`SELECT id, data FROM records WHERE collection = ? AND id = ?`, string(collection), id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// CountRecords returns the number of records in collection.
func (db *ServerDB) CountRecords(collection models.Collection) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM records WHERE collection = ?`, string(collection)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (models.Record, error) {
	var id int64
	var data string
	if err := s.Scan(&id, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	rec := models.Record{}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode record %d: %w", id, err)
	}
	rec["id"] = id
	return rec, nil
}

func normalizeEmail(v any) string {
	s, _ := v.(string)
	return strings.ToLower(strings.TrimSpace(s))
}
