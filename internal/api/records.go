package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/serverdb"
	"github.com/marcus/imtti/internal/webhook"
)

// handleList handles GET /api/{collection}.
func (s *Server) handleList(c models.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.store.ListRecords(c)
		if err != nil {
			logFor(r.Context()).Error("list records", "collection", string(c), "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list "+string(c))
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// handleCreate handles POST /api/{collection}.
func (s *Server) handleCreate(c models.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := decodeObject(w, r)
		if !ok {
			return
		}

		created, err := s.store.CreateRecord(c, rec)
		switch {
		case errors.Is(err, serverdb.ErrInvalidRecord):
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		case errors.Is(err, serverdb.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
			return
		case err != nil:
			logFor(r.Context()).Error("create record", "collection", string(c), "err", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to create record")
			return
		}

		recordCreated(string(c))
		if s.hooks != nil {
			s.hooks.Notify(webhook.NewPayload(webhook.EventRecordCreated, c, created))
		}
		logFor(r.Context()).Info("record created", "collection", string(c), "id", created.IDString())
		writeJSON(w, http.StatusCreated, created)
	}
}

// decodeObject reads a JSON object body. On failure it writes the error
// response and returns false.
func decodeObject(w http.ResponseWriter, r *http.Request) (models.Record, bool) {
	var rec models.Record
	err := json.NewDecoder(r.Body).Decode(&rec)
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge, "request body too large")
		return nil, false
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "request body required")
		return nil, false
	case err != nil:
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "body must be a JSON object")
		return nil, false
	case rec == nil:
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "body must be a JSON object")
		return nil, false
	}
	return rec, true
}
