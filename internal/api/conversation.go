package api

import (
	"net/http"

	"github.com/ashureev/pm-advisor/internal/domain"
)

// Chat replies to a message using caller-supplied history. Nothing is stored.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		invalid(w, err)
		return
	}

	reply := h.svc.Reply(r.Context(), in)
	JSON(w, http.StatusOK, map[string]string{"status": "success", "response": reply})
}

// SendMessage stores a user message and the assistant's reply.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		invalid(w, err)
		return
	}

	key := domain.ConversationKey{TaskID: *req.TaskID, GroupID: *req.GroupID}
	reply, err := h.svc.SendMessage(r.Context(), key, *req.Message, *req.SenderID)
	if err != nil {
		h.logger.Error("send message failed", "conversation_id", key.ID(), "error", err)
		Error(w, http.StatusInternalServerError, "Error processing message: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "success", "response": reply})
}

// AddAgentMessage stores an agent message. Fields are read from the query
// string, or from a JSON body when the query carries none of them.
func (h *Handler) AddAgentMessage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req agentMessageRequest
	if q.Has("task_id") || q.Has("group_id") || q.Has("content") {
		var err error
		if req, err = agentMessageFromQuery(q); err != nil {
			invalid(w, err)
			return
		}
	} else {
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := req.validate(); err != nil {
			invalid(w, err)
			return
		}
	}

	key := domain.ConversationKey{TaskID: *req.TaskID, GroupID: *req.GroupID}
	if err := h.svc.AddAgentMessage(r.Context(), key, *req.Content); err != nil {
		h.logger.Error("add agent message failed", "conversation_id", key.ID(), "error", err)
		Error(w, http.StatusInternalServerError, "Error adding agent message: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Agent message added successfully"})
}

// History returns the stored conversation.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	key, err := conversationKey(r.URL.Query())
	if err != nil {
		invalid(w, err)
		return
	}

	messages, err := h.svc.History(r.Context(), key)
	if err != nil {
		h.logger.Error("history lookup failed", "conversation_id", key.ID(), "error", err)
		Error(w, http.StatusInternalServerError, "Error retrieving conversation history: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"status": "success", "messages": messages})
}

// Summary returns message counts for the stored conversation.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	key, err := conversationKey(r.URL.Query())
	if err != nil {
		invalid(w, err)
		return
	}

	summary, err := h.svc.Summary(r.Context(), key)
	if err != nil {
		h.logger.Error("summary lookup failed", "conversation_id", key.ID(), "error", err)
		Error(w, http.StatusInternalServerError, "Error retrieving conversation summary: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"status": "success", "summary": summary})
}

// Clear deletes the stored conversation. Clearing a missing conversation succeeds.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	key, err := conversationKey(r.URL.Query())
	if err != nil {
		invalid(w, err)
		return
	}

	if err := h.svc.ClearConversation(r.Context(), key); err != nil {
		h.logger.Error("clear conversation failed", "conversation_id", key.ID(), "error", err)
		Error(w, http.StatusInternalServerError, "Error clearing conversation: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Conversation cleared successfully"})
}
