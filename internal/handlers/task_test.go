package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncd-app/syncd-api/internal/models"
)

func TestTaskLifecycle(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "Jordan", "jordan@example.com", "hunter22")

	due := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	rec := app.do(t, http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title":       "Finish lab report",
		"description": "Chem 1410",
		"due_date":    due,
		"priority":    "high",
		"tags":        []string{"chemistry", "lab"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Task models.Task `json:"task"`
	}
	decodeBody(t, rec, &created)
	assert.Equal(t, "Finish lab report", created.Task.Title)
	assert.Equal(t, models.TaskPriorityHigh, created.Task.Priority)
	assert.Equal(t, models.TaskStatusTodo, created.Task.Status)
	assert.Equal(t, []string{"chemistry", "lab"}, created.Task.Tags)

	// Creating a task with a due date schedules its reminder at the
	// default 24 hour offset.
	require.Len(t, app.notifications.scheduled, 1)
	reminder := app.notifications.scheduled[0]
	assert.Equal(t, models.NotificationTaskDue, reminder.Type)
	require.NotNil(t, reminder.ReferenceID)
	assert.Equal(t, created.Task.ID, *reminder.ReferenceID)
	assert.True(t, reminder.ScheduledTime.Equal(due.Add(-24*time.Hour)))

	rec = app.do(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Tasks []models.Task `json:"tasks"`
	}
	decodeBody(t, rec, &listed)
	require.Len(t, listed.Tasks, 1)

	rec = app.do(t, http.MethodPut, "/api/tasks/1", token, map[string]interface{}{
		"title":  "Finish lab report",
		"status": "done",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated struct {
		Task models.Task `json:"task"`
	}
	decodeBody(t, rec, &updated)
	assert.Equal(t, models.TaskStatusDone, updated.Task.Status)

	rec = app.do(t, http.MethodDelete, "/api/tasks/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/tasks", token, nil)
	decodeBody(t, rec, &listed)
	assert.Empty(t, listed.Tasks)
}

func TestCreateTaskWithoutDueDateSchedulesNothing(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "Jordan", "jordan@example.com", "hunter22")

	rec := app.do(t, http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title": "Someday project",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, app.notifications.scheduled)
}

func TestCreateTaskValidation(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "Jordan", "jordan@example.com", "hunter22")

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing title", map[string]interface{}{"description": "no title"}},
		{"blank title", map[string]interface{}{"title": "   "}},
		{"bad priority", map[string]interface{}{"title": "x", "priority": "urgent"}},
		{"bad status", map[string]interface{}{"title": "x", "status": "archived"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/api/tasks", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateMissingTaskReturnsNotFound(t *testing.T) {
	app := newTestApp(t)
	token := app.register(t, "Jordan", "jordan@example.com", "hunter22")

	rec := app.do(t, http.MethodPut, "/api/tasks/99", token, map[string]interface{}{
		"title": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasksAreScopedToTheirOwner(t *testing.T) {
	app := newTestApp(t)
	owner := app.register(t, "Jordan", "jordan@example.com", "hunter22")
	other := app.register(t, "Casey", "casey@example.com", "hunter23")

	rec := app.do(t, http.MethodPost, "/api/tasks", owner, map[string]interface{}{
		"title": "Private task",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Another user can neither see nor delete it.
	rec = app.do(t, http.MethodGet, "/api/tasks", other, nil)
	var listed struct {
		Tasks []models.Task `json:"tasks"`
	}
	decodeBody(t, rec, &listed)
	assert.Empty(t, listed.Tasks)

	rec = app.do(t, http.MethodDelete, "/api/tasks/1", other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasksRequireAuthentication(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/tasks", "", map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
