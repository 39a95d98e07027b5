package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ashureev/pm-advisor/internal/advisor"
	"github.com/ashureev/pm-advisor/internal/domain"
)

// Required request fields are pointers so that a missing field can be told
// apart from a zero value.

// fieldErrors collects missing and malformed fields.
type fieldErrors []string

func (f *fieldErrors) require(name string, present bool) {
	if !present {
		*f = append(*f, "field required: "+name)
	}
}

func (f *fieldErrors) check(ok bool, msg string) {
	if !ok {
		*f = append(*f, msg)
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return errors.New(strings.Join(f, "; "))
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

type taskAssignment struct {
	UserID      *int64  `json:"user_id"`
	UserName    *string `json:"user_name"`
	Description *string `json:"description"`
}

func convertAssignments(field string, in []taskAssignment, errs *fieldErrors) []domain.TaskAssignment {
	errs.require(field, in != nil)
	out := make([]domain.TaskAssignment, 0, len(in))
	for i, a := range in {
		prefix := fmt.Sprintf("%s[%d].", field, i)
		errs.require(prefix+"user_id", a.UserID != nil)
		errs.require(prefix+"user_name", a.UserName != nil)
		errs.require(prefix+"description", a.Description != nil)
		if a.UserID == nil || a.UserName == nil || a.Description == nil {
			continue
		}
		out = append(out, domain.TaskAssignment{UserID: *a.UserID, UserName: *a.UserName, Description: *a.Description})
	}
	return out
}

type projectFields struct {
	ProjectURL      *string `json:"project_url"`
	TaskDescription *string `json:"task_description"`
	GroupName       *string `json:"group_name"`
	TaskName        *string `json:"task_name"`
}

func (p projectFields) info(errs *fieldErrors) advisor.ProjectInfo {
	errs.require("task_description", p.TaskDescription != nil)
	errs.require("group_name", p.GroupName != nil)
	errs.require("task_name", p.TaskName != nil)
	return advisor.ProjectInfo{
		ProjectURL:      str(p.ProjectURL),
		TaskDescription: str(p.TaskDescription),
		GroupName:       str(p.GroupName),
		TaskName:        str(p.TaskName),
	}
}

type initialAdviceRequest struct {
	projectFields
	TaskFileContent *string          `json:"task_file_content"`
	Assignments     []taskAssignment `json:"assignments"`
}

func (r initialAdviceRequest) input() (advisor.InitialAdviceInput, error) {
	var errs fieldErrors
	in := advisor.InitialAdviceInput{
		ProjectInfo:     r.info(&errs),
		TaskFileContent: str(r.TaskFileContent),
		Assignments:     convertAssignments("assignments", r.Assignments, &errs),
	}
	return in, errs.err()
}

type confirmationRequest struct {
	projectFields
	OriginalAssignments []taskAssignment `json:"original_assignments"`
	UpdatedAssignments  []taskAssignment `json:"updated_assignments"`
}

func (r confirmationRequest) input() (advisor.ConfirmationInput, error) {
	var errs fieldErrors
	in := advisor.ConfirmationInput{
		ProjectInfo:         r.info(&errs),
		OriginalAssignments: convertAssignments("original_assignments", r.OriginalAssignments, &errs),
		UpdatedAssignments:  convertAssignments("updated_assignments", r.UpdatedAssignments, &errs),
	}
	return in, errs.err()
}

type followupRequest struct {
	projectFields
	FinalizedAssignments []taskAssignment `json:"finalized_assignments"`
	DaysSinceStart       *int             `json:"days_since_start"`
}

func (r followupRequest) input() (advisor.FollowupInput, error) {
	var errs fieldErrors
	in := advisor.FollowupInput{
		ProjectInfo:          r.info(&errs),
		FinalizedAssignments: convertAssignments("finalized_assignments", r.FinalizedAssignments, &errs),
	}
	errs.require("days_since_start", r.DaysSinceStart != nil)
	if r.DaysSinceStart != nil {
		in.DaysSinceStart = *r.DaysSinceStart
	}
	return in, errs.err()
}

type projectAnalysisRequest struct {
	ProjectURL      *string `json:"project_url"`
	TaskDescription *string `json:"task_description"`
}

func (r projectAnalysisRequest) validate() error {
	var errs fieldErrors
	errs.require("project_url", r.ProjectURL != nil)
	errs.require("task_description", r.TaskDescription != nil)
	return errs.err()
}

type weeklyProgressRequest struct {
	TaskID                 *int64  `json:"task_id"`
	WeekNo                 *int    `json:"week_no"`
	MeetingDocumentURL     *string `json:"meeting_document_url"`
	MeetingDocumentContent *string `json:"meeting_document_content"`
	TaskContent            *string `json:"task_content"`
	InitialAssignments     *string `json:"initial_assignments"`
	WeeklyGoals            *string `json:"weekly_goals"`
}

func (r weeklyProgressRequest) input() (advisor.WeeklyProgressInput, error) {
	var errs fieldErrors
	errs.require("task_id", r.TaskID != nil)
	errs.require("week_no", r.WeekNo != nil)
	errs.require("meeting_document_url", r.MeetingDocumentURL != nil)
	if r.TaskID == nil || r.WeekNo == nil {
		return advisor.WeeklyProgressInput{}, errs.err()
	}
	errs.check(*r.WeekNo >= 1, "week_no must be >= 1")
	return advisor.WeeklyProgressInput{
		TaskID:                 *r.TaskID,
		WeekNo:                 *r.WeekNo,
		MeetingDocumentURL:     str(r.MeetingDocumentURL),
		MeetingDocumentContent: str(r.MeetingDocumentContent),
		TaskContent:            str(r.TaskContent),
		InitialAssignments:     str(r.InitialAssignments),
		WeeklyGoals:            str(r.WeeklyGoals),
	}, errs.err()
}

type weeklyGoalRequest struct {
	TaskID                 *int64                `json:"task_id"`
	StudentID              *int64                `json:"student_id"`
	WeekNo                 *int                  `json:"week_no"`
	TaskContent            *string               `json:"task_content"`
	TaskFileURL            *string               `json:"task_file_url"`
	TaskFileContent        *string               `json:"task_file_content"`
	InitialAssignments     *string               `json:"initial_assignments"`
	PreviousGoals          []domain.PreviousGoal `json:"previous_goals"`
	PreviousMeetingContent *string               `json:"previous_meeting_content"`
}

func (r weeklyGoalRequest) input() (advisor.WeeklyGoalInput, error) {
	var errs fieldErrors
	errs.require("task_id", r.TaskID != nil)
	errs.require("student_id", r.StudentID != nil)
	errs.require("week_no", r.WeekNo != nil)
	if r.TaskID == nil || r.StudentID == nil || r.WeekNo == nil {
		return advisor.WeeklyGoalInput{}, errs.err()
	}
	errs.check(*r.WeekNo >= 1, "week_no must be >= 1")
	return advisor.WeeklyGoalInput{
		TaskID:                 *r.TaskID,
		StudentID:              *r.StudentID,
		WeekNo:                 *r.WeekNo,
		TaskContent:            str(r.TaskContent),
		TaskFileURL:            str(r.TaskFileURL),
		TaskFileContent:        str(r.TaskFileContent),
		InitialAssignments:     str(r.InitialAssignments),
		PreviousGoals:          r.PreviousGoals,
		PreviousMeetingContent: str(r.PreviousMeetingContent),
	}, errs.err()
}

type chatRequest struct {
	UserMessage         *string               `json:"user_message"`
	TaskID              *int64                `json:"task_id"`
	GroupID             *int64                `json:"group_id"`
	TaskName            string                `json:"task_name"`
	TaskDescription     string                `json:"task_description"`
	GroupName           string                `json:"group_name"`
	ConversationHistory []domain.HistoryEntry `json:"conversation_history"`
}

func (r chatRequest) input() (advisor.ReplyInput, error) {
	var errs fieldErrors
	errs.require("user_message", r.UserMessage != nil)
	errs.require("task_id", r.TaskID != nil)
	errs.require("group_id", r.GroupID != nil)
	if err := errs.err(); err != nil {
		return advisor.ReplyInput{}, err
	}
	return advisor.ReplyInput{
		Key:         domain.ConversationKey{TaskID: *r.TaskID, GroupID: *r.GroupID},
		UserMessage: *r.UserMessage,
		History:     r.ConversationHistory,
		Context: &advisor.TaskContext{
			TaskName:        r.TaskName,
			TaskDescription: r.TaskDescription,
			GroupName:       r.GroupName,
		},
	}, nil
}

type sendMessageRequest struct {
	TaskID   *int64  `json:"task_id"`
	GroupID  *int64  `json:"group_id"`
	Message  *string `json:"message"`
	SenderID *int64  `json:"sender_id"`
}

func (r sendMessageRequest) validate() error {
	var errs fieldErrors
	errs.require("task_id", r.TaskID != nil)
	errs.require("group_id", r.GroupID != nil)
	errs.require("message", r.Message != nil)
	errs.require("sender_id", r.SenderID != nil)
	return errs.err()
}

type agentMessageRequest struct {
	TaskID  *int64  `json:"task_id"`
	GroupID *int64  `json:"group_id"`
	Content *string `json:"content"`
}

func (r agentMessageRequest) validate() error {
	var errs fieldErrors
	errs.require("task_id", r.TaskID != nil)
	errs.require("group_id", r.GroupID != nil)
	errs.require("content", r.Content != nil)
	return errs.err()
}

// agentMessageFromQuery reads the request from query parameters.
func agentMessageFromQuery(q url.Values) (agentMessageRequest, error) {
	var req agentMessageRequest
	key, err := conversationKey(q)
	if err != nil {
		return req, err
	}
	req.TaskID, req.GroupID = &key.TaskID, &key.GroupID
	if !q.Has("content") {
		return req, errors.New("field required: content")
	}
	content := q.Get("content")
	req.Content = &content
	return req, nil
}

// conversationKey parses task_id and group_id query parameters.
func conversationKey(q url.Values) (domain.ConversationKey, error) {
	var errs fieldErrors
	parse := func(name string) int64 {
		raw := q.Get(name)
		if raw == "" {
			errs.require(name, false)
			return 0
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		errs.check(err == nil, name+" must be an integer")
		return n
	}
	key := domain.ConversationKey{TaskID: parse("task_id"), GroupID: parse("group_id")}
	return key, errs.err()
}
