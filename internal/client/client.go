// Package client talks to a liftlog server over its REST API. It also holds
// the debounced set writer used by interactive clients and the local log of
// set writes that never reached the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/models"
	"github.com/meltforce/liftlog/internal/storage"
	"github.com/meltforce/liftlog/internal/workout"
)

// APIError is a non-2xx answer from the server. It unwraps to the workout
// error kind matching its status, so callers can use errors.Is on it.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return workout.ErrNotFoundOrUnauthorized
	case http.StatusConflict:
		return workout.ErrInvalidTransition
	case http.StatusBadRequest:
		return workout.ErrValidation
	case http.StatusUnprocessableEntity:
		return workout.ErrInconsistentData
	}
	return workout.ErrPersistence
}

// Client calls the liftlog REST API. The server derives the user from the
// connection, so the userID arguments required by shared interfaces are
// ignored.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL. apiKey may be
// empty when the server does not require one.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return fmt.Errorf("client: %s %s: %w", method, path, &APIError{Status: resp.StatusCode, Message: msg})
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func workoutPath(id uuid.UUID, action string) string {
	p := "/api/v1/workouts/" + id.String()
	if action != "" {
		p += "/" + action
	}
	return p
}

type startBody struct {
	ProgramID         string     `json:"program_id"`
	DayID             string     `json:"day_id"`
	ProgramInstanceID *uuid.UUID `json:"program_instance_id,omitempty"`
}

// Me returns the identity the server attributes requests to.
func (c *Client) Me(ctx context.Context) (login, displayName string, err error) {
	var info struct {
		Login       string `json:"login"`
		DisplayName string `json:"display_name"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, nil, &info); err != nil {
		return "", "", err
	}
	return info.Login, info.DisplayName, nil
}

// Start starts (or returns the existing) session for a program day.
func (c *Client) Start(ctx context.Context, in workout.StartInput) (uuid.UUID, error) {
	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/workouts", nil,
		startBody{ProgramID: in.ProgramID, DayID: in.DayID, ProgramInstanceID: in.ProgramInstanceID}, &resp)
	return resp.ID, err
}

// StartAndView starts a session and returns its view in one call.
func (c *Client) StartAndView(ctx context.Context, in workout.StartInput) (uuid.UUID, *models.SessionView, error) {
	var resp struct {
		WorkoutID uuid.UUID           `json:"workout_id"`
		Session   *models.SessionView `json:"session"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/workouts/session", nil,
		startBody{ProgramID: in.ProgramID, DayID: in.DayID, ProgramInstanceID: in.ProgramInstanceID}, &resp)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return resp.WorkoutID, resp.Session, nil
}

func (c *Client) GetView(ctx context.Context, sessionID uuid.UUID, _ string) (*models.SessionView, error) {
	var view models.SessionView
	if err := c.do(ctx, http.MethodGet, workoutPath(sessionID, "session"), nil, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) Detail(ctx context.Context, sessionID uuid.UUID, _ string) (*models.SessionDetail, error) {
	var detail models.SessionDetail
	if err := c.do(ctx, http.MethodGet, workoutPath(sessionID, ""), nil, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) Pause(ctx context.Context, sessionID uuid.UUID, _ string) error {
	return c.do(ctx, http.MethodPost, workoutPath(sessionID, "pause"), nil, nil, nil)
}

func (c *Client) Resume(ctx context.Context, sessionID uuid.UUID, _ string) (int, error) {
	var resp struct {
		AccumulatedPauseSeconds int `json:"accumulated_pause_seconds"`
	}
	err := c.do(ctx, http.MethodPost, workoutPath(sessionID, "resume"), nil, nil, &resp)
	return resp.AccumulatedPauseSeconds, err
}

func (c *Client) Complete(ctx context.Context, sessionID uuid.UUID, _ string, durationSeconds *int) error {
	body := struct {
		DurationSeconds *int `json:"duration_seconds,omitempty"`
	}{durationSeconds}
	return c.do(ctx, http.MethodPost, workoutPath(sessionID, "complete"), nil, body, nil)
}

func (c *Client) Rate(ctx context.Context, sessionID uuid.UUID, _ string, rating int) error {
	body := struct {
		Rating int `json:"rating"`
	}{rating}
	return c.do(ctx, http.MethodPost, workoutPath(sessionID, "rate"), nil, body, nil)
}

func (c *Client) Reset(ctx context.Context, sessionID uuid.UUID, _ string) (workout.ResetResult, error) {
	var res workout.ResetResult
	err := c.do(ctx, http.MethodPost, workoutPath(sessionID, "reset"), nil, nil, &res)
	return res, err
}

func (c *Client) Delete(ctx context.Context, sessionID uuid.UUID, _ string) error {
	return c.do(ctx, http.MethodDelete, workoutPath(sessionID, ""), nil, nil, nil)
}

func (c *Client) SwapExercise(ctx context.Context, in workout.SwapInput) error {
	body := struct {
		ExerciseOrder   int    `json:"exercise_order"`
		NewExerciseID   string `json:"new_exercise_id"`
		NewExerciseName string `json:"new_exercise_name,omitempty"`
	}{in.OrderIndex, in.NewExerciseID, in.NewExerciseName}
	return c.do(ctx, http.MethodPost, workoutPath(in.SessionID, "swap"), nil, body, nil)
}

// UpsertSet writes one set. Debouncer uses it as its send function.
func (c *Client) UpsertSet(ctx context.Context, in workout.SetInput) error {
	body := struct {
		WorkoutID     uuid.UUID `json:"workout_id"`
		ExerciseOrder int       `json:"exercise_order"`
		ExerciseID    string    `json:"exercise_id"`
		ExerciseName  string    `json:"exercise_name,omitempty"`
		SetNumber     int       `json:"set_number"`
		Reps          int       `json:"reps"`
		Weight        float64   `json:"weight"`
	}{in.SessionID, in.OrderIndex, in.ExerciseID, in.ExerciseName, in.SetNumber, in.Reps, in.Weight}
	return c.do(ctx, http.MethodPost, "/api/v1/workouts/sets", nil, body, nil)
}

func (c *Client) History(ctx context.Context, _ string, limit int) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := c.do(ctx, http.MethodGet, "/api/v1/workouts", limitParams(limit), nil, &entries)
	return entries, err
}

func (c *Client) ExerciseHistory(ctx context.Context, _ string, exerciseID string, limit int) ([]models.ExerciseHistoryEntry, error) {
	var entries []models.ExerciseHistoryEntry
	err := c.do(ctx, http.MethodGet, "/api/v1/exercises/"+url.PathEscape(exerciseID)+"/history", limitParams(limit), nil, &entries)
	return entries, err
}

func (c *Client) LastLifts(ctx context.Context, _ string, exerciseIDs []string) (map[string][]models.ExerciseHistoryEntry, error) {
	params := url.Values{}
	params.Set("ids", strings.Join(exerciseIDs, ","))
	var lifts map[string][]models.ExerciseHistoryEntry
	err := c.do(ctx, http.MethodGet, "/api/v1/exercises/last-lifts", params, nil, &lifts)
	return lifts, err
}

func (c *Client) CompletedDayIDs(ctx context.Context, _ string, programID string) ([]string, error) {
	var days []string
	err := c.do(ctx, http.MethodGet, "/api/v1/programs/"+url.PathEscape(programID)+"/completed-days", nil, nil, &days)
	return days, err
}

// InProgress returns workout.ErrNotFound when the day has no unfinished
// session, matching the database implementation.
func (c *Client) InProgress(ctx context.Context, _ string, programID, dayID string) (*models.InProgressSession, error) {
	var session *models.InProgressSession
	path := "/api/v1/programs/" + url.PathEscape(programID) + "/days/" + url.PathEscape(dayID) + "/in-progress"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &session); err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("client: in-progress session: %w", workout.ErrNotFound)
	}
	return session, nil
}

func (c *Client) GetDataStats(ctx context.Context, _ string) (*storage.DataStats, error) {
	var stats storage.DataStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// bucketToAgg maps MCP bucket values to REST API agg parameter values.
func bucketToAgg(bucket string) string {
	switch bucket {
	case "1 day":
		return "daily"
	case "1 month":
		return "monthly"
	default:
		return "weekly"
	}
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func limitParams(limit int) url.Values {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return v
}

func (c *Client) GetTrainingSummary(ctx context.Context, _ string, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error) {
	params := timeParams(start, end)
	params.Set("agg", bucketToAgg(bucket))

	var periods []storage.TrainingSummaryPeriod
	err := c.do(ctx, http.MethodGet, "/api/v1/training/summary", params, nil, &periods)
	return periods, err
}

func (c *Client) GetExerciseProgress(ctx context.Context, _ string, start, end time.Time, exerciseID string) (*storage.ExerciseProgressResult, error) {
	params := timeParams(start, end)
	if exerciseID != "" {
		params.Set("exercise", exerciseID)
	}

	var result storage.ExerciseProgressResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/training/progress", params, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
