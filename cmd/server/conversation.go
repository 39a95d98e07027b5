package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/ashureev/pm-advisor/internal/config"
	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/store"
	"github.com/spf13/cobra"
)

func newConversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversation",
		Short: "Inspect or clear stored conversations",
	}
	cmd.AddCommand(newConversationHistoryCmd())
	cmd.AddCommand(newConversationSummaryCmd())
	cmd.AddCommand(newConversationClearCmd())
	return cmd
}

// keyFlags registers --task-id and --group-id on cmd.
func keyFlags(cmd *cobra.Command, key *domain.ConversationKey) {
	cmd.Flags().Int64Var(&key.TaskID, "task-id", 0, "Task ID")
	cmd.Flags().Int64Var(&key.GroupID, "group-id", 0, "Group ID")
	_ = cmd.MarkFlagRequired("task-id")
	_ = cmd.MarkFlagRequired("group-id")
}

// withStore opens the configured conversation store for one command.
func withStore(ctx context.Context, fn func(store.ConversationRepository) error) error {
	cfg, err := config.LoadStore()
	if err != nil {
		return err
	}
	repo, err := store.Open(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer func() { _ = repo.Close() }()
	return fn(repo)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newConversationHistoryCmd() *cobra.Command {
	var key domain.ConversationKey
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a conversation's messages as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(repo store.ConversationRepository) error {
				messages, err := repo.History(cmd.Context(), key)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), messages)
			})
		},
	}
	keyFlags(cmd, &key)
	return cmd
}

func newConversationSummaryCmd() *cobra.Command {
	var key domain.ConversationKey
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print message counts for a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(repo store.ConversationRepository) error {
				summary, err := repo.Summary(cmd.Context(), key)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	keyFlags(cmd, &key)
	return cmd
}

func newConversationClearCmd() *cobra.Command {
	var key domain.ConversationKey
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a stored conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(repo store.ConversationRepository) error {
				if err := repo.Clear(cmd.Context(), key); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared conversation %s\n", key.ID())
				return nil
			})
		},
	}
	keyFlags(cmd, &key)
	return cmd
}
