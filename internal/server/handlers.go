package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/workout"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type startRequest struct {
	ProgramID         string     `json:"program_id"`
	DayID             string     `json:"day_id"`
	ProgramInstanceID *uuid.UUID `json:"program_instance_id"`
}

type completeRequest struct {
	DurationSeconds *int `json:"duration_seconds"`
}

type rateRequest struct {
	Rating *int `json:"rating"`
}

type swapRequest struct {
	ExerciseOrder   *int   `json:"exercise_order"`
	NewExerciseID   string `json:"new_exercise_id"`
	NewExerciseName string `json:"new_exercise_name"`
}

type setRequest struct {
	WorkoutID     uuid.UUID `json:"workout_id"`
	ExerciseOrder *int      `json:"exercise_order"`
	ExerciseID    string    `json:"exercise_id"`
	ExerciseName  string    `json:"exercise_name"`
	SetNumber     *int      `json:"set_number"`
	Reps          *int      `json:"reps"`
	Weight        *float64  `json:"weight"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	id, err := s.sessions.Start(r.Context(), s.startInput(r, req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uuid.UUID{"id": id})
}

func (s *Server) handleStartAndView(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	id, view, err := s.sessions.StartAndView(r.Context(), s.startInput(r, req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workout_id": id, "session": view})
}

func (s *Server) startInput(r *http.Request, req startRequest) workout.StartInput {
	return workout.StartInput{
		UserID:            userInfoFromContext(r).Login,
		ProgramID:         req.ProgramID,
		DayID:             req.DayID,
		ProgramInstanceID: req.ProgramInstanceID,
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := s.history.History(r.Context(), userInfoFromContext(r).Login, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	detail, err := s.sessions.Detail(r.Context(), id, userInfoFromContext(r).Login)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	view, err := s.sessions.GetView(r.Context(), id, userInfoFromContext(r).Login)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Pause(r.Context(), id, userInfoFromContext(r).Login); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	acc, err := s.sessions.Resume(r.Context(), id, userInfoFromContext(r).Login)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"accumulated_pause_seconds": acc})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	if err := s.sessions.Complete(r.Context(), id, userInfoFromContext(r).Login, req.DurationSeconds); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Rating == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rating is required"})
		return
	}
	if err := s.sessions.Rate(r.Context(), id, userInfoFromContext(r).Login, *req.Rating); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	res, err := s.sessions.Reset(r.Context(), id, userInfoFromContext(r).Login)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), id, userInfoFromContext(r).Login); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req swapRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.ExerciseOrder == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise_order is required"})
		return
	}
	err := s.sessions.SwapExercise(r.Context(), workout.SwapInput{
		SessionID:       id,
		UserID:          userInfoFromContext(r).Login,
		OrderIndex:      *req.ExerciseOrder,
		NewExerciseID:   req.NewExerciseID,
		NewExerciseName: req.NewExerciseName,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpsertSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	var missing []string
	if req.WorkoutID == uuid.Nil {
		missing = append(missing, "workout_id")
	}
	if req.ExerciseOrder == nil {
		missing = append(missing, "exercise_order")
	}
	if req.SetNumber == nil {
		missing = append(missing, "set_number")
	}
	if req.Reps == nil {
		missing = append(missing, "reps")
	}
	if req.Weight == nil {
		missing = append(missing, "weight")
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields: " + strings.Join(missing, ", ")})
		return
	}

	err := s.sessions.UpsertSet(r.Context(), workout.SetInput{
		SessionID:    req.WorkoutID,
		UserID:       userInfoFromContext(r).Login,
		OrderIndex:   *req.ExerciseOrder,
		ExerciseID:   req.ExerciseID,
		ExerciseName: req.ExerciseName,
		SetNumber:    *req.SetNumber,
		Reps:         *req.Reps,
		Weight:       *req.Weight,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExerciseHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := s.history.ExerciseHistory(r.Context(), userInfoFromContext(r).Login, chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLastLifts(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids parameter required"})
		return
	}
	lifts, err := s.history.LastLifts(r.Context(), userInfoFromContext(r).Login, ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lifts)
}

func (s *Server) handleCompletedDays(w http.ResponseWriter, r *http.Request) {
	days, err := s.history.CompletedDayIDs(r.Context(), userInfoFromContext(r).Login, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// handleInProgress answers null when the day has no unfinished session.
func (s *Server) handleInProgress(w http.ResponseWriter, r *http.Request) {
	session, err := s.history.InProgress(r.Context(), userInfoFromContext(r).Login, chi.URLParam(r, "id"), chi.URLParam(r, "dayId"))
	if errors.Is(err, workout.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.GetDataStats(r.Context(), userInfoFromContext(r).Login)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrainingSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	bucket := "1 week"
	switch r.URL.Query().Get("agg") {
	case "daily":
		bucket = "1 day"
	case "monthly":
		bucket = "1 month"
	case "weekly", "":
		bucket = "1 week"
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agg must be daily, weekly or monthly"})
		return
	}

	periods, err := s.history.GetTrainingSummary(r.Context(), userInfoFromContext(r).Login, start, end, bucket)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

func (s *Server) handleExerciseProgress(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	result, err := s.history.GetExerciseProgress(r.Context(), userInfoFromContext(r).Login, start, end, r.URL.Query().Get("exercise"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// statusFor maps an engine error kind onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workout.ErrNotFoundOrUnauthorized), errors.Is(err, workout.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workout.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, workout.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workout.ErrInconsistentData):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a JSON request body into v, answering 400 on failure.
// An empty body is accepted when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
	return false
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workout ID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxListLimit {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("limit must be between 1 and %d", maxListLimit)})
		return 0, false
	}
	return n, true
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}

	if startStr == "" {
		// Default: last 12 weeks
		start = end.AddDate(0, 0, -84)
		return
	}
	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return
}
