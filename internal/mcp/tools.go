package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/liftlog/internal/workout"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// timeRange parses optional start/end strings. A missing end is now and a
// missing start is end minus defaultDays.
func timeRange(startStr, endStr string, defaultDays int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -defaultDays)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

func limitArg(req mcp.CallToolRequest) int {
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit < 1 {
		return defaultHistoryLimit
	}
	return min(limit, maxHistoryLimit)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// --- Tool definitions ---

var toolGetSessionView = mcp.NewTool("get_session_view",
	mcp.WithDescription("Get a workout session as shown on the live workout screen: session state, elapsed seconds, the exercise at each plan position (after swaps) and every logged set."),
	mcp.WithString("workout_id", mcp.Required(), mcp.Description("Workout session ID (UUID)")),
)

var toolGetHistory = mcp.NewTool("get_history",
	mcp.WithDescription("List completed workout sessions, newest first, with program, day, duration, rating and number of exercises trained."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions. Defaults to 10, at most 100.")),
)

var toolGetExerciseHistory = mcp.NewTool("get_exercise_history",
	mcp.WithDescription("List the sets logged for one exercise in each completed session, newest first."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Catalog exercise ID (e.g. 'bench', 'squat')")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions. Defaults to 10, at most 100.")),
)

var toolGetLastLifts = mcp.NewTool("get_last_lifts",
	mcp.WithDescription("For each exercise, the sets of its last three completed occurrences. Useful to pick the next working weight."),
	mcp.WithString("exercise_ids", mcp.Required(), mcp.Description("Comma-separated catalog exercise IDs")),
)

var toolGetInProgress = mcp.NewTool("get_in_progress",
	mcp.WithDescription("Find the most recent unfinished session of a program day and when its last set was logged."),
	mcp.WithString("program_id", mcp.Required(), mcp.Description("Program ID")),
	mcp.WithString("day_id", mcp.Required(), mcp.Description("Program day ID")),
)

var toolGetDataStats = mcp.NewTool("get_data_stats",
	mcp.WithDescription("Overall counts: sessions started and completed, total sets, tonnage and per-program totals."),
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Weekly/monthly aggregated training volume from completed sessions: session count, working sets, reps, tonnage and average duration per period."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 6 months ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 week'."), mcp.Enum("1 week", "1 month")),
)

var toolGetExerciseProgress = mcp.NewTool("get_exercise_progress",
	mcp.WithDescription("Per-exercise totals (sets, reps, tonnage, max weight, best estimated 1RM) and, when an exercise is given, its session-by-session progression."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Catalog exercise ID. When set, includes session-by-session progression.")),
)

// --- Tool handlers ---

func (h *handlers) getSessionView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("workout_id")
	if err != nil {
		return mcp.NewToolResultError("workout_id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid workout_id: " + err.Error()), nil
	}

	view, err := h.ds.GetView(ctx, id, UserIDFromContext(ctx))
	if errors.Is(err, workout.ErrNotFoundOrUnauthorized) {
		return mcp.NewToolResultError("workout not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_session_view", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(view)
}

func (h *handlers) getHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.ds.History(ctx, UserIDFromContext(ctx), limitArg(req))
	if err != nil {
		h.log.Error("mcp get_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(entries)
}

func (h *handlers) getExerciseHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}

	entries, err := h.ds.ExerciseHistory(ctx, UserIDFromContext(ctx), exerciseID, limitArg(req))
	if err != nil {
		h.log.Error("mcp get_exercise_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(entries)
}

func (h *handlers) getLastLifts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("exercise_ids")
	if err != nil {
		return mcp.NewToolResultError("exercise_ids parameter is required"), nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return mcp.NewToolResultError("exercise_ids must name at least one exercise"), nil
	}

	lifts, err := h.ds.LastLifts(ctx, UserIDFromContext(ctx), ids)
	if err != nil {
		h.log.Error("mcp get_last_lifts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(lifts)
}

func (h *handlers) getInProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	programID, err := req.RequireString("program_id")
	if err != nil {
		return mcp.NewToolResultError("program_id parameter is required"), nil
	}
	dayID, err := req.RequireString("day_id")
	if err != nil {
		return mcp.NewToolResultError("day_id parameter is required"), nil
	}

	session, err := h.ds.InProgress(ctx, UserIDFromContext(ctx), programID, dayID)
	if errors.Is(err, workout.ErrNotFound) {
		return mcp.NewToolResultText("no session in progress for this day"), nil
	}
	if err != nil {
		h.log.Error("mcp get_in_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(session)
}

func (h *handlers) getDataStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetDataStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_data_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(stats)
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), 182)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	bucket := req.GetString("bucket", "1 week")
	if bucket != "1 week" && bucket != "1 month" {
		return mcp.NewToolResultError("bucket must be '1 week' or '1 month'"), nil
	}

	summary, err := h.ds.GetTrainingSummary(ctx, UserIDFromContext(ctx), start, end, bucket)
	if err != nil {
		h.log.Error("mcp get_training_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(summary)
}

func (h *handlers) getExerciseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	progress, err := h.ds.GetExerciseProgress(ctx, UserIDFromContext(ctx), start, end, req.GetString("exercise", ""))
	if err != nil {
		h.log.Error("mcp get_exercise_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(progress)
}
