package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConversationCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONVERSATION_STORE", "file")
	t.Setenv("CONVERSATION_DIR", dir)

	repo, err := store.NewFileStore(dir, nil)
	require.NoError(t, err)
	key := domain.ConversationKey{TaskID: 3, GroupID: 4}
	sender := int64(11)
	ctx := context.Background()
	_, err = repo.AddMessage(ctx, key, domain.SenderUser, "hello", &sender)
	require.NoError(t, err)
	_, err = repo.AddMessage(ctx, key, domain.SenderAgent, "hi there", nil)
	require.NoError(t, err)

	out, err := runCLI(t, "conversation", "history", "--task-id", "3", "--group-id", "4")
	require.NoError(t, err)
	var messages []domain.ConversationMessage
	require.NoError(t, json.Unmarshal([]byte(out), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "hi there", messages[1].Content)

	out, err = runCLI(t, "conversation", "summary", "--task-id", "3", "--group-id", "4")
	require.NoError(t, err)
	var summary domain.ConversationSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.TotalMessages)
	assert.Equal(t, "4_3", summary.ConversationID)

	out, err = runCLI(t, "conversation", "clear", "--task-id", "3", "--group-id", "4")
	require.NoError(t, err)
	assert.Equal(t, "Cleared conversation 4_3\n", out)

	history, err := repo.History(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConversationCommandRequiresFlags(t *testing.T) {
	t.Setenv("CONVERSATION_DIR", t.TempDir())

	_, err := runCLI(t, "conversation", "history", "--task-id", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group-id")
}
