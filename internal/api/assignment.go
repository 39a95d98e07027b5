package api

import (
	"net/http"

	"github.com/ashureev/pm-advisor/internal/advisor"
)

func adviceResponse(res advisor.AdviceResult) map[string]interface{} {
	return map[string]interface{}{
		"advice":          res.Advice,
		"status":          "success",
		"conversation_id": res.ConversationID,
	}
}

// InitialAdvice reviews a proposed set of task assignments.
func (h *Handler) InitialAdvice(w http.ResponseWriter, r *http.Request) {
	var req initialAdviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		invalid(w, err)
		return
	}

	res, err := h.svc.InitialAdvice(r.Context(), in)
	if err != nil {
		h.logger.Error("initial advice failed", "task_name", in.TaskName, "group_name", in.GroupName, "error", err)
		Error(w, http.StatusInternalServerError, "Error generating advice: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, adviceResponse(res))
}

// ConfirmationAdvice reviews updated assignments before confirmation.
func (h *Handler) ConfirmationAdvice(w http.ResponseWriter, r *http.Request) {
	var req confirmationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		invalid(w, err)
		return
	}

	res, err := h.svc.ConfirmationAdvice(r.Context(), in)
	if err != nil {
		h.logger.Error("confirmation advice failed", "task_name", in.TaskName, "group_name", in.GroupName, "error", err)
		Error(w, http.StatusInternalServerError, "Error generating confirmation advice: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, adviceResponse(res))
}

// FollowupAdvice produces follow-up reminders for finalized assignments.
func (h *Handler) FollowupAdvice(w http.ResponseWriter, r *http.Request) {
	var req followupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		invalid(w, err)
		return
	}

	res, err := h.svc.FollowupAdvice(r.Context(), in)
	if err != nil {
		h.logger.Error("follow-up advice failed", "task_name", in.TaskName, "group_name", in.GroupName, "error", err)
		Error(w, http.StatusInternalServerError, "Error generating follow-up advice: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, adviceResponse(res))
}

// ProjectAnalysis analyzes a project ahead of assignment.
func (h *Handler) ProjectAnalysis(w http.ResponseWriter, r *http.Request) {
	var req projectAnalysisRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		invalid(w, err)
		return
	}

	analysis, err := h.svc.ProjectAnalysis(r.Context(), *req.ProjectURL, *req.TaskDescription)
	if err != nil {
		h.logger.Error("project analysis failed", "project_url", *req.ProjectURL, "error", err)
		Error(w, http.StatusInternalServerError, "Error analyzing project: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"analysis": analysis, "status": "success"})
}
