package api

import (
	"net/http"
)

// AnalyzeWeeklyProgress evaluates a group's week. Model failures are reported
// with status 200 and status "error".
func (h *Handler) AnalyzeWeeklyProgress(w http.ResponseWriter, r *http.Request) {
	var req weeklyProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		invalid(w, err)
		return
	}

	analysis, err := h.svc.AnalyzeWeeklyProgress(r.Context(), in)
	if err != nil {
		JSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": "Analysis failed: " + err.Error(),
		})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"analysis": analysis,
		"task_id":  in.TaskID,
		"week_no":  in.WeekNo,
	})
}

// GenerateWeeklyGoal proposes one student's goal for a week.
func (h *Handler) GenerateWeeklyGoal(w http.ResponseWriter, r *http.Request) {
	var req weeklyGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		invalid(w, err)
		return
	}

	goal := h.svc.GenerateWeeklyGoal(r.Context(), in)
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"weekly_goal": goal,
	})
}
