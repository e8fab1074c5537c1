package fallback

import (
	"github.com/marcus/imtti/internal/models"
)

// Method is the kind of operation: a read (GET) or a write (POST).
type Method string

const (
	MethodRead  Method = "GET"
	MethodWrite Method = "POST"
)

// Endpoint is a path relative to the API base.
type Endpoint string

const (
	EndpointAdmins       Endpoint = "/admins"
	EndpointCenters      Endpoint = "/centers"
	EndpointStudents     Endpoint = "/students"
	EndpointApplications Endpoint = "/applications"
	EndpointMarks        Endpoint = "/marks"

	EndpointAuthAdmin   Endpoint = "/auth/admin"
	EndpointAuthCenter  Endpoint = "/auth/center"
	EndpointAuthStudent Endpoint = "/auth/student"
)

var endpointCollections = map[Endpoint]models.Collection{
	EndpointAdmins:       models.CollectionAdmins,
	EndpointCenters:      models.CollectionCenters,
	EndpointStudents:     models.CollectionStudents,
	EndpointApplications: models.CollectionApplications,
	EndpointMarks:        models.CollectionMarks,
}

// Collection returns the local collection backing the endpoint. Auth
// endpoints have none.
func (e Endpoint) Collection() (models.Collection, bool) {
	c, ok := endpointCollections[e]
	return c, ok
}

// EndpointFor returns the endpoint serving a collection.
func EndpointFor(c models.Collection) Endpoint {
	return Endpoint("/" + string(c))
}

// Source identifies which side answered a call.
type Source int

const (
	SourceRemote Source = iota
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceLocal:
		return "local"
	}
	return "unknown"
}

// Result is the outcome of a dispatched call.
type Result struct {
	// Value is the decoded remote body, or []models.Record from the local store.
	Value any
	// Source is SourceRemote when the remote answered successfully.
	Source Source
	// Err is why the remote attempt failed (or a local store problem). It is
	// nil for remote successes and for plain offline reads.
	Err error
	// Mirrored is set when a created record was appended locally.
	Mirrored bool
}

// FellBack reports whether a remote attempt was made and failed.
func (r Result) FellBack() bool {
	return r.Source == SourceLocal && r.Err != nil
}

// Record returns Value as a single record when it is a JSON object.
func (r Result) Record() (models.Record, bool) {
	switch v := r.Value.(type) {
	case models.Record:
		return v, v != nil
	case map[string]any:
		return models.Record(v), v != nil
	}
	return nil, false
}

// Records returns Value as a list of records when it is an array of objects.
// Non-object elements are skipped.
func (r Result) Records() ([]models.Record, bool) {
	switch v := r.Value.(type) {
	case []models.Record:
		return v, true
	case []any:
		out := make([]models.Record, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, models.Record(m))
			}
		}
		return out, true
	}
	return nil, false
}

// ID returns the identifier of a single-record result, or "".
func (r Result) ID() string {
	rec, ok := r.Record()
	if !ok {
		return ""
	}
	return rec.IDString()
}
