package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncd-app/syncd-api/internal/models"
	"github.com/syncd-app/syncd-api/internal/repository"
)

type fakePreferenceStore struct {
	prefs      map[int64]models.Preferences
	recipients []repository.DigestRecipient
	prefsErr   error
}

func (f *fakePreferenceStore) GetPreferences(_ context.Context, userID int64) (models.Preferences, error) {
	if f.prefsErr != nil {
		return models.Preferences{}, f.prefsErr
	}
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return models.DefaultPreferences(userID), nil
}

func (f *fakePreferenceStore) ListDigestRecipients(_ context.Context) ([]repository.DigestRecipient, error) {
	return f.recipients, nil
}

// fakeNotificationStore mimics the unique index: duplicate tuples are
// silently dropped.
type fakeNotificationStore struct {
	scheduled  []repository.ScheduleParams
	seen       map[string]bool
	failUserID int64
}

func (f *fakeNotificationStore) Schedule(_ context.Context, params repository.ScheduleParams) error {
	if params.UserID == f.failUserID {
		return errors.New("insert failed")
	}

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

func TestScheduleTaskReminderUsesReminderOffset(t *testing.T) {
	prefs := &fakePreferenceStore{prefs: map[int64]models.Preferences{
		7: {UserID: 7, ReminderHours: 48, EmailNotifications: true},
	}}
	store := &fakeNotificationStore{}
	svc := NewService(prefs, store, zerolog.Nop())

	due := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, svc.ScheduleTaskReminder(context.Background(), 42, 7, due))

	require.Len(t, store.scheduled, 1)
	got := store.scheduled[0]
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, models.NotificationTaskDue, got.Type)
	require.NotNil(t, got.ReferenceID)
	assert.Equal(t, int64(42), *got.ReferenceID)
	assert.True(t, got.ScheduledTime.Equal(due.Add(-48*time.Hour)))
}

func TestScheduleTaskReminderDefaultsTo24Hours(t *testing.T) {
	store := &fakeNotificationStore{}
	svc := NewService(&fakePreferenceStore{}, store, zerolog.Nop())

	due := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, svc.ScheduleTaskReminder(context.Background(), 42, 7, due))

	require.Len(t, store.scheduled, 1)
	assert.True(t, store.scheduled[0].ScheduledTime.Equal(due.Add(-24*time.Hour)))
}

func TestScheduleReminderIsIdempotent(t *testing.T) {
	store := &fakeNotificationStore{}
	svc := NewService(&fakePreferenceStore{}, store, zerolog.Nop())

	due := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, svc.ScheduleEventReminder(ctx, 99, 7, due))
	require.NoError(t, svc.ScheduleEventReminder(ctx, 99, 7, due))

	assert.Len(t, store.scheduled, 1)
}

func TestScheduleReminderPropagatesPreferenceError(t *testing.T) {
	prefs := &fakePreferenceStore{prefsErr: errors.New("db gone")}
	store := &fakeNotificationStore{}
	svc := NewService(prefs, store, zerolog.Nop())

	err := svc.ScheduleTaskReminder(context.Background(), 42, 7, time.Now())
	require.Error(t, err)
	assert.Empty(t, store.scheduled)
}

func TestScheduleDailyDigestsIsolatesFailures(t *testing.T) {
	prefs := &fakePreferenceStore{recipients: []repository.DigestRecipient{
		{UserID: 1, DailyAgendaTime: "08:00:00"},
		{UserID: 2, DailyAgendaTime: "not a time"},
		{UserID: 3, DailyAgendaTime: "18:30:00"},
	}}
	store := &fakeNotificationStore{}
	svc := NewService(prefs, store, zerolog.Nop())

	require.NoError(t, svc.ScheduleDailyDigests(context.Background()))

	// The bad agenda time is skipped, the others still land.
	require.Len(t, store.scheduled, 2)
	assert.Equal(t, int64(1), store.scheduled[0].UserID)
	assert.Equal(t, models.NotificationDailyAgenda, store.scheduled[0].Type)
	assert.Nil(t, store.scheduled[0].ReferenceID)
	assert.Equal(t, int64(3), store.scheduled[1].UserID)
}

func TestScheduleDailyDigestsIsIdempotent(t *testing.T) {
	prefs := &fakePreferenceStore{recipients: []repository.DigestRecipient{
		{UserID: 1, DailyAgendaTime: "08:00:00"},
	}}
	store := &fakeNotificationStore{}
	svc := NewService(prefs, store, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, svc.ScheduleDailyDigests(ctx))
	require.NoError(t, svc.ScheduleDailyDigests(ctx))

	assert.Len(t, store.scheduled, 1)
}

func TestNextDigestTime(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		agendaTime string
		expected   time.Time
	}{
		{
			name:       "still ahead today",
			agendaTime: "18:30:00",
			expected:   time.Date(2025, time.March, 10, 18, 30, 0, 0, time.UTC),
		},
		{
			name:       "already passed rolls to tomorrow",
			agendaTime: "08:00:00",
			expected:   time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC),
		},
		{
			name:       "short form without seconds",
			agendaTime: "18:30",
			expected:   time.Date(2025, time.March, 10, 18, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDigestTime(now, tt.agendaTime)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.expected), "got %v, expected %v", got, tt.expected)
		})
	}
}

func TestNextDigestTimeRejectsMalformedInput(t *testing.T) {
	now := time.Now()
	for _, input := range []string{"", "soon", "25:00:00", "08:61:00"} {
		_, err := NextDigestTime(now, input)
		assert.Error(t, err, "input %q", input)
	}
}
