package advisor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/goalparse"
	"github.com/ashureev/pm-advisor/internal/prompt"
	"github.com/ashureev/pm-advisor/internal/shared"
)

// Placeholders used when weekly analysis data is neither supplied nor fetched.
const (
	NoTaskContent        = "Task content not provided"
	NoInitialAssignments = "Initial assignments not provided"
	NoWeeklyGoals        = "Weekly goals not provided"
)

const (
	maxTaskContent        = 2000
	maxAssignmentsContent = 1000
	maxPreviousContent    = 1000

	noGoalTaskContent   = "No task content available."
	noStudentAssignment = "No assignment found for this student."
	goalErrorReason     = "An error occurred during goal generation."
)

// WeeklyProgressInput is the data for one week's group progress analysis.
// Empty text fields are filled from the primary backend when it is configured.
type WeeklyProgressInput struct {
	TaskID                 int64
	WeekNo                 int
	MeetingDocumentURL     string
	MeetingDocumentContent string
	TaskContent            string
	InitialAssignments     string
	WeeklyGoals            string
}

// AnalyzeWeeklyProgress evaluates the group's progress for a week.
func (s *Service) AnalyzeWeeklyProgress(ctx context.Context, in WeeklyProgressInput) (string, error) {
	log := s.logger.With("task_id", in.TaskID, "week_no", in.WeekNo)

	taskContent := s.resolve(in.TaskContent, NoTaskContent, func() string {
		return s.tasks.TaskFileContent(ctx, in.TaskID)
	})
	assignments := s.resolve(in.InitialAssignments, NoInitialAssignments, func() string {
		return s.tasks.InitialAssignments(ctx, in.TaskID)
	})
	goals := s.resolve(in.WeeklyGoals, NoWeeklyGoals, func() string {
		return s.tasks.WeeklyGoals(ctx, in.TaskID, in.WeekNo)
	})

	meeting := in.MeetingDocumentContent
	if meeting == "" {
		log.Info("fetching meeting document", "url", in.MeetingDocumentURL)
		meeting = s.docs.Fetch(ctx, in.MeetingDocumentURL)
	}

	log.Info("analyzing weekly progress",
		"task_content_length", len(taskContent),
		"initial_assignments_length", len(assignments),
		"weekly_goals_length", len(goals),
		"meeting_content_length", len(meeting),
		"meeting_content_preview", preview(meeting),
	)

	analysis, err := s.complete(ctx, prompt.KindWeeklyAnalysis, s.profiles.Agent, prompt.WeeklyAnalysis{
		WeekNo:             in.WeekNo,
		TaskContent:        taskContent,
		InitialAssignments: assignments,
		WeeklyGoals:        goals,
		MeetingContent:     meeting,
	}, exchangeScope{TaskID: in.TaskID, WeekNo: in.WeekNo})
	if err != nil {
		log.Error("weekly analysis failed", "error", err)
		return "", err
	}
	log.Info("weekly analysis complete", "analysis_length", len(analysis))
	return analysis, nil
}

// resolve returns value, else the backend lookup when a backend is configured,
// else placeholder.
func (s *Service) resolve(value, placeholder string, fetch func() string) string {
	if value != "" {
		return value
	}
	if s.tasks != nil && s.tasks.Configured() {
		return fetch()
	}
	return placeholder
}

// WeeklyGoalInput is the data for one student's goal in one week.
type WeeklyGoalInput struct {
	TaskID                 int64
	StudentID              int64
	WeekNo                 int
	TaskContent            string
	TaskFileURL            string
	TaskFileContent        string
	InitialAssignments     string
	PreviousGoals          []domain.PreviousGoal
	PreviousMeetingContent string
}

// GenerateWeeklyGoal proposes a goal for a student. It never fails: model
// errors are reported inside the returned goal.
func (s *Service) GenerateWeeklyGoal(ctx context.Context, in WeeklyGoalInput) domain.WeeklyGoal {
	log := s.logger.With("task_id", in.TaskID, "student_id", in.StudentID, "week_no", in.WeekNo)
	log.Info("generating weekly goal",
		"task_content_length", len(in.TaskContent),
		"task_file_url", in.TaskFileURL,
		"task_file_content_length", len(in.TaskFileContent),
		"initial_assignments_length", len(in.InitialAssignments),
		"previous_goals", len(in.PreviousGoals),
		"previous_meeting_length", len(in.PreviousMeetingContent),
	)

	data := prompt.WeeklyGoal{
		WeekNo:             in.WeekNo,
		StudentName:        fmt.Sprintf("Student %d", in.StudentID),
		TaskContent:        shared.Truncate(combinedTaskContent(in.TaskContent, in.TaskFileContent), maxTaskContent),
		StudentAssignment:  studentAssignment(in.InitialAssignments, in.StudentID),
		InitialAssignments: shared.Truncate(in.InitialAssignments, maxAssignmentsContent),
		FormatInstructions: prompt.GoalFormatInstructions,
	}
	if in.WeekNo != 1 {
		data.PreviousGoals = shared.Truncate(prompt.FormatPreviousGoals(in.PreviousGoals), maxPreviousContent)
		data.PreviousMeetingContent = shared.Truncate(in.PreviousMeetingContent, maxPreviousContent)
	}

	raw, err := s.complete(ctx, data.Kind(), s.profiles.Agent, data, exchangeScope{
		TaskID:    in.TaskID,
		StudentID: in.StudentID,
		WeekNo:    in.WeekNo,
	})
	if err != nil {
		log.Error("weekly goal generation failed", "error", err)
		return domain.WeeklyGoal{
			Goal:   fmt.Sprintf("Error generating goal: %v", err),
			Reason: goalErrorReason,
		}
	}

	result := goalparse.Recover(raw)
	s.metrics.GoalRecovered(ctx, string(result.Stage))
	log.Info("weekly goal generated", "stage", result.Stage, "goal_preview", preview(result.Goal))
	return result.WeeklyGoal
}

func combinedTaskContent(taskContent, fileContent string) string {
	combined := strings.TrimSpace(taskContent + "\n\n" + fileContent)
	if combined == "" {
		return noGoalTaskContent
	}
	return combined
}

// studentAssignment returns the first assignment line mentioning the student id.
// Matching is by substring, so id 7 also matches a line naming student 17.
func studentAssignment(assignments string, studentID int64) string {
	id := strconv.FormatInt(studentID, 10)
	for _, line := range strings.Split(assignments, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.Contains(line, id) {
			return line
		}
	}
	return noStudentAssignment
}
