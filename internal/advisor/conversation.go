package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/prompt"
)

// ReplyFallback is returned to the user when the model call fails.
const ReplyFallback = "I'm sorry, I encountered an error while processing your message. Please try again."

// TaskContext describes the project a chat is about.
type TaskContext struct {
	TaskName        string
	TaskDescription string
	GroupName       string
}

// ReplyInput is one user turn plus the history that precedes it.
type ReplyInput struct {
	Key         domain.ConversationKey
	UserMessage string
	History     []domain.HistoryEntry
	// Context is optional; without it a generic task line is used.
	Context *TaskContext
}

// Reply generates the assistant's next message. Model failures are absorbed
// into ReplyFallback.
func (s *Service) Reply(ctx context.Context, in ReplyInput) string {
	out, err := s.complete(ctx, prompt.KindConversation, s.profiles.Agent, prompt.Conversation{
		TaskContext:         taskContextBlock(in.Key, in.Context),
		ConversationHistory: prompt.FormatHistory(in.History),
		UserMessage:         in.UserMessage,
	}, exchangeScope{TaskID: in.Key.TaskID, GroupID: in.Key.GroupID})
	if err != nil {
		s.logger.Error("conversational reply failed",
			"task_id", in.Key.TaskID,
			"group_id", in.Key.GroupID,
			"error", err,
		)
		return ReplyFallback
	}
	return strings.TrimSpace(out)
}

func taskContextBlock(key domain.ConversationKey, tc *TaskContext) string {
	if tc == nil {
		return fmt.Sprintf("Task ID: %d, Group ID: %d. This is a collaborative project assignment.", key.TaskID, key.GroupID)
	}
	return fmt.Sprintf("Project: %s\nDescription: %s\nTeam: %s\nTask ID: %d, Group ID: %d",
		tc.TaskName, tc.TaskDescription, tc.GroupName, key.TaskID, key.GroupID)
}

// SendMessage stores a user message, replies using the stored history and
// stores the reply.
func (s *Service) SendMessage(ctx context.Context, key domain.ConversationKey, message string, senderID int64) (string, error) {
	if _, err := s.store.AddMessage(ctx, key, domain.SenderUser, message, &senderID); err != nil {
		return "", fmt.Errorf("store user message: %w", err)
	}
	s.metrics.MessageAppended(ctx, domain.SenderUser)

	stored, err := s.store.History(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	history := make([]domain.HistoryEntry, 0, len(stored))
	for _, m := range stored {
		history = append(history, domain.HistoryEntry{SenderType: string(m.SenderType), Content: m.Content})
	}

	reply := s.Reply(ctx, ReplyInput{Key: key, UserMessage: message, History: history})

	if _, err := s.store.AddMessage(ctx, key, domain.SenderAgent, reply, nil); err != nil {
		return "", fmt.Errorf("store agent reply: %w", err)
	}
	s.metrics.MessageAppended(ctx, domain.SenderAgent)

	s.logger.Info("conversation message handled",
		"conversation_id", key.ID(),
		"message_length", len(message),
		"reply_length", len(reply),
	)
	return reply, nil
}

// AddAgentMessage stores an externally generated agent message.
func (s *Service) AddAgentMessage(ctx context.Context, key domain.ConversationKey, content string) error {
	if _, err := s.store.AddMessage(ctx, key, domain.SenderAgent, content, nil); err != nil {
		return err
	}
	s.metrics.MessageAppended(ctx, domain.SenderAgent)
	return nil
}

// History returns the stored conversation.
func (s *Service) History(ctx context.Context, key domain.ConversationKey) ([]domain.ConversationMessage, error) {
	return s.store.History(ctx, key)
}

// Summary returns message counts for the stored conversation.
func (s *Service) Summary(ctx context.Context, key domain.ConversationKey) (domain.ConversationSummary, error) {
	return s.store.Summary(ctx, key)
}

// ClearConversation deletes the stored conversation.
func (s *Service) ClearConversation(ctx context.Context, key domain.ConversationKey) error {
	return s.store.Clear(ctx, key)
}
