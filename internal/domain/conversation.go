// Package domain contains core domain types for the advisor service.
package domain

import (
	"fmt"
)

// SenderType identifies who wrote a conversation message.
type SenderType string

const (
	// SenderUser marks a message written by a student or teacher.
	SenderUser SenderType = "USER"
	// SenderAgent marks a message generated by the assistant.
	SenderAgent SenderType = "AGENT"
)

// Valid reports whether s is a known sender type.
func (s SenderType) Valid() bool {
	return s == SenderUser || s == SenderAgent
}

// ConversationKey identifies one conversation by its task and group.
type ConversationKey struct {
	TaskID  int64
	GroupID int64
}

// ID returns the public conversation identifier, "<group_id>_<task_id>".
func (k ConversationKey) ID() string {
	return fmt.Sprintf("%d_%d", k.GroupID, k.TaskID)
}

// ConversationMessage is a single immutable entry in a conversation log.
// SenderID is nil for agent messages and serializes as JSON null.
type ConversationMessage struct {
	MessageID  int        `json:"message_id"`
	SenderType SenderType `json:"sender_type"`
	SenderID   *int64     `json:"sender_id"`
	Content    string     `json:"content"`
	Timestamp  string     `json:"timestamp"`
}

// ConversationSummary is a derived, read-only view over a conversation.
type ConversationSummary struct {
	ConversationID string  `json:"conversation_id"`
	TotalMessages  int     `json:"total_messages"`
	UserMessages   int     `json:"user_messages"`
	AgentMessages  int     `json:"agent_messages"`
	LastActivity   *string `json:"last_activity"`
}

// Summarize builds the summary for messages stored under key.
func Summarize(key ConversationKey, messages []ConversationMessage) ConversationSummary {
	summary := ConversationSummary{
		ConversationID: key.ID(),
		TotalMessages:  len(messages),
	}
	for _, m := range messages {
		switch m.SenderType {
		case SenderUser:
			summary.UserMessages++
		case SenderAgent:
			summary.AgentMessages++
		}
	}
	if len(messages) > 0 {
		last := messages[len(messages)-1].Timestamp
		summary.LastActivity = &last
	}
	return summary
}
