package domain

// TaskAssignment is one member's share of a task, as supplied by the caller.
type TaskAssignment struct {
	UserID      int64  `json:"user_id"`
	UserName    string `json:"user_name"`
	Description string `json:"description"`
}

// PreviousGoal is a weekly goal from an earlier week, in the primary backend's shape.
type PreviousGoal struct {
	WeekNo int    `json:"weekNo"`
	Goal   string `json:"goal"`
	Status string `json:"status"`
}

// WeeklyGoal is the {goal, reason} pair produced for one student and week.
type WeeklyGoal struct {
	Goal   string `json:"goal"`
	Reason string `json:"reason"`
}

// HistoryEntry is a loosely-typed message supplied by callers of the chat endpoint.
// Callers send either the stored message shape (sender_type) or a bare sender field.
type HistoryEntry struct {
	SenderType string `json:"sender_type,omitempty"`
	Sender     string `json:"sender,omitempty"`
	Content    string `json:"content"`
}

// Speaker returns the label used when the entry is rendered into a prompt.
func (h HistoryEntry) Speaker() string {
	switch {
	case h.SenderType != "":
		return h.SenderType
	case h.Sender != "":
		return h.Sender
	default:
		return "Unknown"
	}
}
