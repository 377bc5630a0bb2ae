package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/syncd-app/syncd-api/internal/config"
	"github.com/syncd-app/syncd-api/internal/handlers"
	"github.com/syncd-app/syncd-api/internal/models"
	"github.com/syncd-app/syncd-api/internal/repository"
	"github.com/syncd-app/syncd-api/internal/routes"
	"github.com/syncd-app/syncd-api/internal/scheduler"
	"github.com/syncd-app/syncd-api/internal/scraper"
)

// In-memory fakes backing the HTTP handlers under test.

type fakeUserRepo struct {
	nextID    int64
	users     map[int64]models.User
	passwords map[string]string
	prefs     map[int64]models.Preferences
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:     map[int64]models.User{},
		passwords: map[string]string{},
		prefs:     map[int64]models.Preferences{},
	}
}

func (f *fakeUserRepo) Create(_ context.Context, name, email, password string) (models.User, error) {
	if _, taken := f.passwords[email]; taken {
		return models.User{}, repository.ErrEmailTaken
	}
	f.nextID++
	user := models.User{ID: f.nextID, Name: name, Email: email, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.users[user.ID] = user
	f.passwords[email] = password
	return user, nil
}

func (f *fakeUserRepo) Authenticate(_ context.Context, email, password string) (models.User, error) {
	stored, ok := f.passwords[email]
	if !ok || stored != password {
		return models.User{}, repository.ErrInvalidCredentials
	}
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrInvalidCredentials
}

func (f *fakeUserRepo) GetByID(_ context.Context, userID int64) (models.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetPreferences(_ context.Context, userID int64) (models.Preferences, error) {
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return models.DefaultPreferences(userID), nil
}

func (f *fakeUserRepo) UpdatePreferences(_ context.Context, userID int64, prefs models.Preferences) (models.Preferences, error) {
	prefs.UserID = userID
	f.prefs[userID] = prefs
	return prefs, nil
}

func (f *fakeUserRepo) ListDigestRecipients(_ context.Context) ([]repository.DigestRecipient, error) {
	var recipients []repository.DigestRecipient
	for id := range f.users {
		prefs, _ := f.GetPreferences(context.Background(), id)
		if prefs.EmailNotifications {
			recipients = append(recipients, repository.DigestRecipient{UserID: id, DailyAgendaTime: prefs.DailyAgendaTime})
		}
	}
	return recipients, nil
}

type fakeTaskRepo struct {
	nextID int64
	tasks  map[int64]models.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[int64]models.Task{}}
}

func (f *fakeTaskRepo) ListByUser(_ context.Context, userID int64) ([]models.Task, error) {
	var out []models.Task
	for _, task := range f.tasks {
		if task.UserID == userID {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskRepo) GetByID(_ context.Context, taskID int64) (models.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return models.Task{}, repository.ErrTaskNotFound
	}
	return task, nil
}

func (f *fakeTaskRepo) Create(_ context.Context, task models.Task) (models.Task, error) {
	f.nextID++
	task.ID = f.nextID
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) Update(_ context.Context, task models.Task) (models.Task, error) {
	existing, ok := f.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return models.Task{}, repository.ErrTaskNotFound
	}
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now()
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, taskID, userID int64) error {
	existing, ok := f.tasks[taskID]
	if !ok || existing.UserID != userID {
		return repository.ErrTaskNotFound
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeTaskRepo) ListDueBetween(_ context.Context, userID int64, from, to time.Time) ([]models.Task, error) {
	var out []models.Task
	for _, task := range f.tasks {
		if task.UserID != userID || task.DueDate == nil {
			continue
		}
		if !task.DueDate.Before(from) && task.DueDate.Before(to) {
			out = append(out, task)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	events map[int64]models.Event
	subs   map[int64]map[int64]bool
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: map[int64]models.Event{}, subs: map[int64]map[int64]bool{}}
}

func (f *fakeEventRepo) StoreScraped(_ context.Context, _ models.ScrapedEvent) error { return nil }

func (f *fakeEventRepo) GetByID(_ context.Context, eventID int64) (models.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return models.Event{}, repository.ErrEventNotFound
	}
	return event, nil
}

func (f *fakeEventRepo) ListUpcoming(_ context.Context, userID int64) ([]models.Event, error) {
	var out []models.Event
	for _, event := range f.events {
		event.IsSubscribed = f.subs[userID][event.ID]
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) Subscribe(_ context.Context, userID, eventID int64) error {
	if f.subs[userID] == nil {
		f.subs[userID] = map[int64]bool{}
	}
	f.subs[userID][eventID] = true
	return nil
}

func (f *fakeEventRepo) Unsubscribe(_ context.Context, userID, eventID int64) error {
	delete(f.subs[userID], eventID)
	return nil
}

func (f *fakeEventRepo) ListSubscribed(_ context.Context, userID int64) ([]models.Event, error) {
	var out []models.Event
	for eventID := range f.subs[userID] {
		if event, ok := f.events[eventID]; ok {
			event.IsSubscribed = true
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) ListSubscribedBetween(_ context.Context, userID int64, from, to time.Time) ([]models.Event, error) {
	subscribed, _ := f.ListSubscribed(context.Background(), userID)
	var out []models.Event
	for _, event := range subscribed {
		if !event.EventDate.Before(from) && event.EventDate.Before(to) {
			out = append(out, event)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	scheduled []repository.ScheduleParams
	seen      map[string]bool
	rows      []models.Notification
}

func (f *fakeNotificationRepo) Schedule(_ context.Context, params repository.ScheduleParams) error {
	ref := int64(0)
	if params.ReferenceID != nil {
		ref = *params.ReferenceID
	}
	key := fmt.Sprintf("%d|%s|%d|%d", params.UserID, params.Type, ref, params.ScheduledTime.Unix())
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return nil
	}
	f.seen[key] = true
	f.scheduled = append(f.scheduled, params)
	return nil
}

func (f *fakeNotificationRepo) ListDue(_ context.Context, _ time.Time) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) MarkSent(_ context.Context, _ int64) error { return nil }

func (f *fakeNotificationRepo) ListForUser(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, row := range f.rows {
		if row.UserID == userID && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

type testApp struct {
	router        http.Handler
	users         *fakeUserRepo
	tasks         *fakeTaskRepo
	events        *fakeEventRepo
	notifications *fakeNotificationRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	app := &testApp{
		users:         newFakeUserRepo(),
		tasks:         newFakeTaskRepo(),
		events:        newFakeEventRepo(),
		notifications: &fakeNotificationRepo{},
	}

	logger := zerolog.Nop()
	sched := scheduler.NewService(app.users, app.notifications, logger)
	sc := scraper.New(config.ScraperConfig{
		BaseURL:   "http://127.0.0.1:0",
		Pages:     1,
		PageDelay: time.Millisecond,
		Interval:  time.Hour,
		UserAgent: "test-agent",
	}, app.events, logger)

	app.router = routes.NewRouter(
		handlers.NewAuthHandler(app.users, "test-secret", logger),
		handlers.NewTaskHandler(app.tasks, sched, logger),
		handlers.NewEventHandler(app.events, sched, sc, logger),
		handlers.NewNotificationHandler(app.notifications, logger),
	)
	return app
}

func (a *testApp) do(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// register creates a user through the API and returns their token.
func (a *testApp) register(t *testing.T, name, email, password string) string {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target))
}
