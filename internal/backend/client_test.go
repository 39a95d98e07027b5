package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// fakeBackend mimics the primary backend's task endpoints.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	var srv *httptest.Server

	r.Get("/files/spec.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Build a todo app"))
	})
	r.Get("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch chi.URLParam(r, "id") {
		case "1":
			_, _ = w.Write([]byte(`{"data":{"fileUrl":"` + srv.URL + `/files/spec.txt"}}`))
		case "2":
			_, _ = w.Write([]byte(`{"data":{}}`))
		case "3":
			_, _ = w.Write([]byte(`{"data":{"fileUrl":"` + srv.URL + `/files/missing"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	r.Get("/api/student/task-assignments/{id}/finalized", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "1" {
			_, _ = w.Write([]byte(`{"data":[{"memberName":"Ann","description":"frontend"},{"description":"backend"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	r.Get("/api/student/tasks/{id}/weekly-goals", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"weekNo":1,"studentId":7,"studentName":"Ann","goal":"wireframes","status":"DONE"},
			{"weekNo":2,"studentId":8,"goal":"api","status":"PENDING"},
			{"weekNo":1,"studentId":8,"goal":"schema","status":"DONE"}
		]}`))
	})

	srv = httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestTaskFileContent(t *testing.T) {
	t.Parallel()
	srv := fakeBackend(t)
	c := New(srv.URL+"/", "Bearer secret", 5*time.Second, nil)
	ctx := context.Background()

	assert.Equal(t, "Build a todo app", c.TaskFileContent(ctx, 1))
	assert.Equal(t, "No task file attached.", c.TaskFileContent(ctx, 2))
	assert.Equal(t, "Failed to download task file: HTTP 404", c.TaskFileContent(ctx, 3))
	assert.Equal(t, "Failed to get task info: HTTP 404", c.TaskFileContent(ctx, 9))

	unauthorized := New(srv.URL, "", 5*time.Second, nil)
	assert.Equal(t, "Failed to get task info: HTTP 401", unauthorized.TaskFileContent(ctx, 1))
}

func TestInitialAssignments(t *testing.T) {
	t.Parallel()
	srv := fakeBackend(t)
	c := New(srv.URL, "", 5*time.Second, nil)

	assert.Equal(t, "- Ann: frontend\n- Unknown: backend\n", c.InitialAssignments(context.Background(), 1))
	assert.Equal(t, "No initial assignments found.", c.InitialAssignments(context.Background(), 2))
}

func TestWeeklyGoals(t *testing.T) {
	t.Parallel()
	srv := fakeBackend(t)
	c := New(srv.URL, "", 5*time.Second, nil)

	assert.Equal(t, "- Ann (DONE): wireframes\n- Student 8 (DONE): schema\n", c.WeeklyGoals(context.Background(), 1, 1))
	assert.Equal(t, "No goals found for week 5.", c.WeeklyGoals(context.Background(), 1, 5))
}

func TestUnreachableBackend(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "", time.Second, nil)
	assert.Contains(t, c.InitialAssignments(context.Background(), 1), "Error fetching initial assignments: ")
	assert.True(t, c.Configured())
	assert.False(t, New("", "", time.Second, nil).Configured())
}
