package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Collection names a locally persisted sequence of records.
type Collection string

const (
	CollectionCenters      Collection = "centers"
	CollectionStudents     Collection = "students"
	CollectionApplications Collection = "applications"
	CollectionMarks        Collection = "marks"
	CollectionAdmins       Collection = "admins"
)

// AllCollections lists every collection name in display order.
var AllCollections = []Collection{
	CollectionCenters,
	CollectionStudents,
	CollectionApplications,
	CollectionMarks,
	CollectionAdmins,
}

// IsValid reports whether c is a known collection name.
func (c Collection) IsValid() bool {
	for _, known := range AllCollections {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCollection converts a user supplied name into a Collection.
func ParseCollection(s string) (Collection, error) {
	c := Collection(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown collection %q", s)
	}
	return c, nil
}

// Record is an opaque JSON object: a center, student, application, mark or admin.
// The only field the client looks at is "id".
type Record map[string]any

// ID returns the record's identifier and whether it is non-empty.
// Empty means missing, null, "", 0 or false.
func (r Record) ID() (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r["id"]
	if !ok {
		return nil, false
	}
	return v, truthy(v)
}

// IDString formats the identifier for display, or "" when absent.
func (r Record) IDString() string {
	v, ok := r.ID()
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case interface{ String() string }:
		// json.Number
		s := x.String()
		return s != "" && s != "0"
	default:
		return true
	}
}

// DecodeJSON unmarshals data into v, keeping numbers as json.Number so ids
// beyond 2^53 survive a round trip. Trailing data after the value is an
// error, as with json.Unmarshal.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("invalid character after top-level value")
	}
	return nil
}

// EmailCredentials is the login body for admins and centers.
type EmailCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StudentCredentials is the login body for students.
type StudentCredentials struct {
	RegistrationID string `json:"registration_id"`
	DateOfBirth    string `json:"date_of_birth"`
}
