package advisor

import (
	"context"
	"fmt"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/prompt"
)

const notProvided = "not provided"

// AdviceResult is the advice text plus the identifier the caller uses to
// thread follow-up requests.
type AdviceResult struct {
	Advice         string
	ConversationID string
}

// ProjectInfo is the project context shared by the task-assignment operations.
type ProjectInfo struct {
	ProjectURL      string
	TaskDescription string
	GroupName       string
	TaskName        string
}

func (p ProjectInfo) url() string {
	if p.ProjectURL == "" {
		return notProvided
	}
	return p.ProjectURL
}

func (p ProjectInfo) conversationID() string {
	return p.GroupName + "_" + p.TaskName
}

// InitialAdviceInput asks for a review of the first assignment proposal.
type InitialAdviceInput struct {
	ProjectInfo
	TaskFileContent string
	Assignments     []domain.TaskAssignment
}

// InitialAdvice reviews the proposed assignments against the project file.
// The task description stands in for a missing project file.
func (s *Service) InitialAdvice(ctx context.Context, in InitialAdviceInput) (AdviceResult, error) {
	content := in.TaskFileContent
	if content == "" {
		content = in.TaskDescription
	}
	assignments := prompt.FormatAssignments(in.Assignments)

	s.logger.Info("generating initial assignment advice",
		"task_name", in.TaskName,
		"group_name", in.GroupName,
		"assignments", len(in.Assignments),
		"task_content_length", len(content),
		"task_content_preview", preview(content),
	)

	advice, err := s.complete(ctx, prompt.KindInitialAssignment, s.profiles.Advice, prompt.InitialAssignment{
		ProjectURL:      in.url(),
		GroupName:       in.GroupName,
		TaskName:        in.TaskName,
		TaskDescription: in.TaskDescription,
		TaskFileContent: content,
		Assignments:     assignments,
	}, exchangeScope{})
	if err != nil {
		return AdviceResult{}, fmt.Errorf("initial advice: %w", err)
	}
	return AdviceResult{Advice: advice, ConversationID: in.conversationID()}, nil
}

// ConfirmationInput compares the original and updated assignments.
type ConfirmationInput struct {
	ProjectInfo
	OriginalAssignments []domain.TaskAssignment
	UpdatedAssignments  []domain.TaskAssignment
}

// ConfirmationAdvice reviews an updated assignment set before it is confirmed.
func (s *Service) ConfirmationAdvice(ctx context.Context, in ConfirmationInput) (AdviceResult, error) {
	advice, err := s.complete(ctx, prompt.KindConfirmation, s.profiles.Advice, prompt.Confirmation{
		ProjectURL:          in.url(),
		GroupName:           in.GroupName,
		TaskName:            in.TaskName,
		TaskDescription:     in.TaskDescription,
		OriginalAssignments: prompt.FormatAssignments(in.OriginalAssignments),
		UpdatedAssignments:  prompt.FormatAssignments(in.UpdatedAssignments),
	}, exchangeScope{})
	if err != nil {
		return AdviceResult{}, fmt.Errorf("confirmation advice: %w", err)
	}
	return AdviceResult{Advice: advice, ConversationID: in.conversationID()}, nil
}

// FollowupInput describes finalized assignments some days into the task.
type FollowupInput struct {
	ProjectInfo
	FinalizedAssignments []domain.TaskAssignment
	DaysSinceStart       int
}

// FollowupAdvice produces reminders and checkpoints for finalized assignments.
func (s *Service) FollowupAdvice(ctx context.Context, in FollowupInput) (AdviceResult, error) {
	advice, err := s.complete(ctx, prompt.KindFollowup, s.profiles.Advice, prompt.Followup{
		ProjectURL:           in.url(),
		GroupName:            in.GroupName,
		TaskName:             in.TaskName,
		TaskDescription:      in.TaskDescription,
		FinalizedAssignments: prompt.FormatAssignments(in.FinalizedAssignments),
		DaysSinceStart:       in.DaysSinceStart,
	}, exchangeScope{})
	if err != nil {
		return AdviceResult{}, fmt.Errorf("follow-up advice: %w", err)
	}
	return AdviceResult{Advice: advice, ConversationID: in.conversationID()}, nil
}

// ProjectAnalysis analyzes a project before any assignments exist.
func (s *Service) ProjectAnalysis(ctx context.Context, projectURL, taskDescription string) (string, error) {
	analysis, err := s.complete(ctx, prompt.KindProjectAnalysis, s.profiles.Advice, prompt.ProjectAnalysis{
		ProjectURL:      projectURL,
		TaskDescription: taskDescription,
	}, exchangeScope{})
	if err != nil {
		return "", fmt.Errorf("project analysis: %w", err)
	}
	return analysis, nil
}
