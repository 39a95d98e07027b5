// Package prompt renders the fixed prompt templates sent to the language model.
//
// Slot values are substituted verbatim. Callers apply placeholders such as
// "not provided" and any truncation before rendering.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/ashureev/pm-advisor/internal/domain"
)

// Kind names a prompt template. It doubles as the purpose label for LLM
// metrics and exchange logs.
type Kind string

const (
	KindInitialAssignment  Kind = "initial_assignment"
	KindConfirmation       Kind = "confirmation"
	KindFollowup           Kind = "followup"
	KindProjectAnalysis    Kind = "project_analysis"
	KindConversation       Kind = "conversation"
	KindWeeklyAnalysis     Kind = "weekly_analysis"
	KindFirstWeekGoal      Kind = "first_week_goal"
	KindSubsequentWeekGoal Kind = "subsequent_week_goal"
)

// GoalFormatInstructions asks the model for a fenced JSON object with goal and
// reason keys. It is embedded into both weekly goal templates.
const GoalFormatInstructions = "The output should be a markdown code snippet formatted in the following schema, including the leading and trailing \"```json\" and \"```\":\n\n```json\n{\n\t\"goal\": string  // The weekly goal content for the student\n\t\"reason\": string  // The reasoning behind this weekly goal, based on task requirements and previous progress\n}\n```"

var templates = map[Kind]*template.Template{
	KindInitialAssignment:  mustParse(KindInitialAssignment, initialAssignmentText),
	KindConfirmation:       mustParse(KindConfirmation, confirmationText),
	KindFollowup:           mustParse(KindFollowup, followupText),
	KindProjectAnalysis:    mustParse(KindProjectAnalysis, projectAnalysisText),
	KindConversation:       mustParse(KindConversation, conversationText),
	KindWeeklyAnalysis:     mustParse(KindWeeklyAnalysis, weeklyAnalysisText),
	KindFirstWeekGoal:      mustParse(KindFirstWeekGoal, firstWeekGoalText),
	KindSubsequentWeekGoal: mustParse(KindSubsequentWeekGoal, subsequentWeekGoalText),
}

func mustParse(kind Kind, text string) *template.Template {
	return template.Must(template.New(string(kind)).Option("missingkey=error").Parse(text))
}

// InitialAssignment holds the slots of the initial-assignment advice prompt.
type InitialAssignment struct {
	ProjectURL      string
	GroupName       string
	TaskName        string
	TaskDescription string
	TaskFileContent string
	Assignments     string
}

// Confirmation holds the slots of the assignment confirmation prompt.
type Confirmation struct {
	ProjectURL          string
	GroupName           string
	TaskName            string
	TaskDescription     string
	OriginalAssignments string
	UpdatedAssignments  string
}

// Followup holds the slots of the follow-up reminder prompt.
type Followup struct {
	ProjectURL           string
	GroupName            string
	TaskName             string
	TaskDescription      string
	FinalizedAssignments string
	DaysSinceStart       int
}

// ProjectAnalysis holds the slots of the project analysis prompt.
type ProjectAnalysis struct {
	ProjectURL      string
	TaskDescription string
}

// Conversation holds the slots of the conversational reply prompt.
type Conversation struct {
	TaskContext         string
	ConversationHistory string
	UserMessage         string
}

// WeeklyAnalysis holds the slots of the weekly progress analysis prompt.
type WeeklyAnalysis struct {
	WeekNo             int
	TaskContent        string
	InitialAssignments string
	WeeklyGoals        string
	MeetingContent     string
}

// WeeklyGoal holds the slots of both weekly goal prompts. PreviousGoals and
// PreviousMeetingContent are only rendered after the first week.
type WeeklyGoal struct {
	WeekNo                 int
	StudentName            string
	TaskContent            string
	StudentAssignment      string
	InitialAssignments     string
	PreviousGoals          string
	PreviousMeetingContent string
	FormatInstructions     string
}

// Kind returns the template used for the goal's week.
func (g WeeklyGoal) Kind() Kind {
	if g.WeekNo == 1 {
		return KindFirstWeekGoal
	}
	return KindSubsequentWeekGoal
}

// Render fills the template for kind with data.
func Render(kind Kind, data any) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown prompt kind %q", kind)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", kind, err)
	}
	return b.String(), nil
}

// FormatAssignments renders assignments as "- <user_name>: <description>" lines.
func FormatAssignments(assignments []domain.TaskAssignment) string {
	lines := make([]string, 0, len(assignments))
	for _, a := range assignments {
		lines = append(lines, fmt.Sprintf("- %s: %s", a.UserName, a.Description))
	}
	return strings.Join(lines, "\n")
}

// FormatPreviousGoals renders goals as "Week n: goal (status)" lines, or
// "No previous goals." when there are none.
func FormatPreviousGoals(goals []domain.PreviousGoal) string {
	if len(goals) == 0 {
		return "No previous goals."
	}
	var b strings.Builder
	for _, g := range goals {
		fmt.Fprintf(&b, "Week %d: %s (%s)\n", g.WeekNo, g.Goal, g.Status)
	}
	return b.String()
}

// FormatHistory renders chat history as "speaker: content" lines, or
// "No previous conversation." when empty.
func FormatHistory(history []domain.HistoryEntry) string {
	if len(history) == 0 {
		return "No previous conversation."
	}
	lines := make([]string, 0, len(history))
	for _, h := range history {
		lines = append(lines, h.Speaker()+": "+h.Content)
	}
	return strings.Join(lines, "\n")
}
