package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/serverdb"
)

// handleEmailLogin handles POST /api/auth/admin and /api/auth/center.
func (s *Server) handleEmailLogin(c models.Collection, role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.EmailCredentials
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
			return
		}

		rec, err := s.store.VerifyEmailLogin(c, req.Email, req.Password)
		s.finishLogin(w, r, role, req.Email, rec, err)
	}
}

// handleStudentLogin handles POST /api/auth/student.
func (s *Server) handleStudentLogin(w http.ResponseWriter, r *http.Request) {
	var req models.StudentCredentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	rec, err := s.store.VerifyStudentLogin(req.RegistrationID, req.DateOfBirth)
	s.finishLogin(w, r, "student", req.RegistrationID, rec, err)
}

// finishLogin audits the attempt and writes the response: the matching
// record tagged with its role, or 401.
func (s *Server) finishLogin(w http.ResponseWriter, r *http.Request, role, identifier string, rec models.Record, err error) {
	log := logFor(r.Context())
	ok := err == nil

	if auditErr := s.store.InsertLoginEvent(role, identifier, ok, clientIP(r)); auditErr != nil {
		log.Error("log login event", "err", auditErr)
	}
	recordLogin(role, ok)

	switch {
	case errors.Is(err, serverdb.ErrInvalidCredentials):
		log.Info("login rejected", "role", role)
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid credentials")
		return
	case err != nil:
		log.Error("verify login", "role", role, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "login failed")
		return
	}

	out := rec.Clone()
	out["role"] = role
	log.Info("login", "role", role, "id", rec.IDString())
	writeJSON(w, http.StatusOK, out)
}
