package serverdb

import (
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/marcus/imtti/internal/models"
)

// VerifyEmailLogin checks an email + password pair against the credentials
// registered for collection and returns the matching record.
func (db *ServerDB) VerifyEmailLogin(collection models.Collection, email, password string) (models.Record, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var recordID int64
	var hash string
	err := db.conn.QueryRow(
		`SELECT record_id, password_hash FROM credentials WHERE collection = ? AND email = ?`,
		string(collection), email,
	).Scan(&recordID, &hash)
	if err == sql.ErrNoRows {
		// compare anyway so unknown emails cost the same as wrong passwords
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	rec, err := db.GetRecord(collection, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidCredentials
	}
	return rec, nil
}

// VerifyStudentLogin finds the student with the given registration id and
// date of birth.
func (db *ServerDB) VerifyStudentLogin(registrationID, dateOfBirth string) (models.Record, error) {
	registrationID = strings.TrimSpace(registrationID)
	dateOfBirth = strings.TrimSpace(dateOfBirth)
	if registrationID == "" || dateOfBirth == "" {
		return nil, ErrInvalidCredentials
	}

	row := db.conn.QueryRow(
		`SELECT id, data FROM records
		 WHERE collection = ?
		   AND json_extract(data, '$.registration_id') = ?
		   AND json_extract(data, '$.date_of_birth') = ?
		 ORDER BY id LIMIT 1`,
		string(models.CollectionStudents), registrationID, dateOfBirth,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// EnsureAdmin creates the admin account unless one with that email exists.
// It reports whether an account was created.
func (db *ServerDB) EnsureAdmin(email, password string) (bool, error) {
	_, err := db.CreateRecord(models.CollectionAdmins, models.Record{
		"email":    email,
		"password": password,
		"role":     "admin",
	})
	if err == ErrDuplicateEmail {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("imtti-dummy-password"), bcrypt.MinCost)
