// Package worker provides the HTTP worker service for dealscope.
package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/calibervc/dealscope/internal/config"
	"github.com/calibervc/dealscope/internal/db/gorm"
	"github.com/calibervc/dealscope/pkg/models"
)

// CreateSubjectRequest is the payload for registering a subject.
type CreateSubjectRequest struct {
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
}

// handleCreateSubject registers a deal subject. Idempotent: registering an
// existing subject is a no-op.
func (s *Service) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req CreateSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SubjectID == "" {
		http.Error(w, "subject_id is required", http.StatusBadRequest)
		return
	}

	if err := s.subjectStore.Create(r.Context(), req.SubjectID, req.Name); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]string{"subject_id": req.SubjectID})
}

// handleListSubjects returns every subject's score state.
func (s *Service) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.subjectStore.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"subjects": subjects,
		"count":    len(subjects),
	})
}

// handleGetScore returns a subject's cached score state.
func (s *Service) handleGetScore(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	state, err := s.engine.GetScore(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, state)
}

// handleSetBaseScore seeds a subject's category base scores. The subject is
// created if it does not exist yet.
func (s *Service) handleSetBaseScore(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var breakdown models.ScoreBreakdown
	if err := json.NewDecoder(r.Body).Decode(&breakdown); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.engine.SetBaseScore(r.Context(), subjectID, breakdown); err != nil {
		writeError(w, err)
		return
	}

	state, err := s.engine.GetScore(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, state)
}

// handleAppendEvent accepts one score event for a subject and returns the
// stored event together with the freshly recalculated score state.
func (s *Service) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var in models.ScoreEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	in.SubjectID = subjectID

	if in.Signal == "" {
		http.Error(w, "signal is required", http.StatusBadRequest)
		return
	}
	if !in.Category.Valid() {
		http.Error(w, "unknown category", http.StatusBadRequest)
		return
	}

	event, err := s.engine.AppendEvent(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := s.engine.GetScore(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]interface{}{
		"event": event,
		"score": state,
	})
}

// handleAppendEventBatch accepts a batch of events spanning any number of
// subjects, e.g. the output of a deck analysis pass.
func (s *Service) handleAppendEventBatch(w http.ResponseWriter, r *http.Request) {
	var inputs []models.ScoreEventInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	for _, in := range inputs {
		if in.SubjectID == "" {
			http.Error(w, "subject_id is required on every event", http.StatusBadRequest)
			return
		}
		if !in.Category.Valid() {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}
	}

	if err := s.engine.AppendEvents(r.Context(), inputs); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"accepted": len(inputs),
	})
}

// handleGetEvents returns a most-recent-first page of a subject's events.
func (s *Service) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	q := models.EventQuery{
		Category: models.ScoreCategory(r.URL.Query().Get("category")),
		Limit:    gorm.ParseLimitParam(r, DefaultEventsLimit),
		Offset:   gorm.ParseIntParam(r, "offset", 0),
	}

	events, total, err := s.engine.GetEvents(r.Context(), subjectID, q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// handleGetHistory returns a subject's reconstructed day-by-day score series.
func (s *Service) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	days := gorm.ParseIntParam(r, "days", config.DefaultHistoryDays)

	series, err := s.engine.GetHistory(r.Context(), subjectID, days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"history": series,
		"days":    days,
	})
}

// handleGetAlerts returns a subject's recent alerts, most recent first.
func (s *Service) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	limit := gorm.ParseLimitParam(r, DefaultAlertsLimit)

	alerts, err := s.engine.GetAlerts(r.Context(), subjectID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// handleRecalculate replays a subject's full event log into a fresh score.
func (s *Service) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	result, err := s.engine.Recalculate(r.Context(), subjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}
