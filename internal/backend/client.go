// Package backend reads task data from the primary course-project backend.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 10 << 20

// envelope is the primary backend's standard response wrapper.
type envelope[T any] struct {
	Data T `json:"data"`
}

type taskInfo struct {
	FileURL string `json:"fileUrl"`
}

type assignment struct {
	MemberName  *string `json:"memberName"`
	Description string  `json:"description"`
}

type memberWeeklyGoal struct {
	WeekNo      int     `json:"weekNo"`
	StudentID   int64   `json:"studentId"`
	StudentName *string `json:"studentName"`
	Goal        string  `json:"goal"`
	Status      string  `json:"status"`
}

// Client fetches task content, assignments and weekly goals. Every method
// returns prompt-ready text and reports failures inside that text.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
	logger    *slog.Logger
}

// New creates a Client for baseURL. An empty baseURL yields a client whose
// Configured method reports false.
func New(baseURL, authToken string, timeout time.Duration, logger *slog.Logger) *Client {
	return NewWithClient(baseURL, authToken, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, logger)
}

// NewWithClient creates a Client around an existing HTTP client.
func NewWithClient(baseURL, authToken string, client *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		authToken: authToken,
		http:      client,
		logger:    logger,
	}
}

// Configured reports whether a backend URL was provided.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// TaskFileContent downloads the file attached to a task.
func (c *Client) TaskFileContent(ctx context.Context, taskID int64) string {
	var info envelope[taskInfo]
	status, err := c.getJSON(ctx, fmt.Sprintf("/api/tasks/%d", taskID), &info)
	if err != nil {
		return fmt.Sprintf("Error fetching task file content: %v", err)
	}
	if status != http.StatusOK {
		return fmt.Sprintf("Failed to get task info: HTTP %d", status)
	}
	if info.Data.FileURL == "" {
		return "No task file attached."
	}

	body, status, err := c.get(ctx, info.Data.FileURL, false)
	if err != nil {
		return fmt.Sprintf("Error fetching task file content: %v", err)
	}
	if status != http.StatusOK {
		return fmt.Sprintf("Failed to download task file: HTTP %d", status)
	}
	return string(body)
}

// InitialAssignments returns the finalized assignments as "- name: description" lines.
func (c *Client) InitialAssignments(ctx context.Context, taskID int64) string {
	var resp envelope[[]assignment]
	status, err := c.getJSON(ctx, fmt.Sprintf("/api/student/task-assignments/%d/finalized", taskID), &resp)
	if err != nil {
		return fmt.Sprintf("Error fetching initial assignments: %v", err)
	}
	if status != http.StatusOK {
		return fmt.Sprintf("Failed to fetch assignments: HTTP %d", status)
	}
	if len(resp.Data) == 0 {
		return "No initial assignments found."
	}

	var b strings.Builder
	for _, a := range resp.Data {
		name := "Unknown"
		if a.MemberName != nil {
			name = *a.MemberName
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, a.Description)
	}
	return b.String()
}

// WeeklyGoals returns the goals recorded for weekNo as "- name (status): goal" lines.
func (c *Client) WeeklyGoals(ctx context.Context, taskID int64, weekNo int) string {
	var resp envelope[[]memberWeeklyGoal]
	status, err := c.getJSON(ctx, fmt.Sprintf("/api/student/tasks/%d/weekly-goals", taskID), &resp)
	if err != nil {
		return fmt.Sprintf("Error fetching weekly goals: %v", err)
	}
	if status != http.StatusOK {
		return fmt.Sprintf("Failed to fetch weekly goals: HTTP %d", status)
	}

	var b strings.Builder
	for _, g := range resp.Data {
		if g.WeekNo != weekNo {
			continue
		}
		name := fmt.Sprintf("Student %d", g.StudentID)
		if g.StudentName != nil {
			name = *g.StudentName
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", name, g.Status, g.Goal)
	}
	if b.Len() == 0 {
		return fmt.Sprintf("No goals found for week %d.", weekNo)
	}
	return b.String()
}

// getJSON fetches path from the backend and decodes a 200 body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) (int, error) {
	body, status, err := c.get(ctx, c.baseURL+path, true)
	if err != nil || status != http.StatusOK {
		return status, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return status, fmt.Errorf("decode %s: %w", path, err)
	}
	return status, nil
}

func (c *Client) get(ctx context.Context, url string, authorize bool) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if authorize && c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "url", url, "error", err)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("backend request", "url", url, "status", resp.StatusCode, "duration", time.Since(start))
	return body, resp.StatusCode, nil
}
