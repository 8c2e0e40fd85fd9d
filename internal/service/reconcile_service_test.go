package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TI02-jp/site-sub001/internal/gateway"
	"github.com/TI02-jp/site-sub001/internal/model"
)

var (
	windowFrom = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func newReconcileFixture() (*ReconcileService, *fakeMeetingStore, *fakeIdentityStore, *fakeGateway, *fakeCache) {
	meetings := &fakeMeetingStore{}
	users := &fakeIdentityStore{
		users: []*model.User{
			{ID: 1, Username: "tanaka", Email: "tanaka@example.com"},
			{ID: 2, Username: "suzuki", Email: "suzuki@example.com"},
		},
	}
	gw := &fakeGateway{}
	c := &fakeCache{}
	svc := NewReconcileService(meetings, users, gw, c, 300*time.Second, 250, zap.NewNop())
	return svc, meetings, users, gw, c
}

func localMeeting(id int64, start time.Time, externalID *string) *model.Meeting {
	return &model.Meeting{
		ID:              id,
		Subject:         "Local meeting",
		Status:          model.MeetingStatusScheduled,
		Start:           start,
		End:             start.Add(time.Hour),
		ExternalEventID: externalID,
		CreatorID:       1,
		ParticipantIDs:  []int64{1, 2},
	}
}

func TestCombineEvents_MatchedPairEmittedOnceAsBoth(t *testing.T) {
	svc, meetings, _, gw, _ := newReconcileFixture()

	start := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	meetings.meetings = []*model.Meeting{localMeeting(10, start, strPtr("E1"))}
	gw.events = []model.ExternalEvent{{
		ID:             "E1",
		Subject:        "External copy",
		Start:          start,
		End:            start.Add(time.Hour),
		ConferenceLink: "https://meet.example.com/e1",
	}}

	view, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Len(t, view.Events, 1)
	ev := view.Events[0]
	require.Equal(t, model.OriginBoth, ev.Origin)
	// Локальные поля приоритетнее, внешняя ссылка на конференцию
	// подставляется при отсутствии локальной
	require.Equal(t, "Local meeting", ev.Subject)
	require.Equal(t, "https://meet.example.com/e1", ev.ConferenceLink)
	require.Equal(t, "E1", ev.ExternalEventID)
}

func TestCombineEvents_NoOverlapKeepsBothSides(t *testing.T) {
	svc, meetings, _, gw, _ := newReconcileFixture()

	meetings.meetings = []*model.Meeting{
		localMeeting(10, time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC), nil),
		localMeeting(11, time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC), nil),
	}
	gw.events = []model.ExternalEvent{
		{ID: "E1", Start: time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)},
		{ID: "E2", Start: time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)},
	}

	view, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Len(t, view.Events, 4)
	for i := 1; i < len(view.Events); i++ {
		require.False(t, view.Events[i].Start.Before(view.Events[i-1].Start))
	}
}

func TestCombineEvents_TieBrokenByOccurrenceID(t *testing.T) {
	svc, meetings, _, gw, _ := newReconcileFixture()

	start := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	meetings.meetings = []*model.Meeting{localMeeting(10, start, nil)}
	gw.events = []model.ExternalEvent{
		{ID: "B", Start: start},
		{ID: "A", Start: start},
	}

	view, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Len(t, view.Events, 3)
	require.Equal(t, "A", view.Events[0].OccurrenceID())
	require.Equal(t, "B", view.Events[1].OccurrenceID())
	require.Equal(t, "local-10", view.Events[2].OccurrenceID())
}

func TestCombineEvents_BatchedIdentityLookups(t *testing.T) {
	svc, meetings, users, gw, _ := newReconcileFixture()

	meetings.meetings = []*model.Meeting{
		localMeeting(10, time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC), nil),
		localMeeting(11, time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC), nil),
		localMeeting(12, time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC), nil),
	}
	gw.events = []model.ExternalEvent{
		{ID: "E1", Start: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), AttendeeEmails: []string{"tanaka@example.com"}},
		{ID: "E2", Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), AttendeeEmails: []string{"suzuki@example.com", "guest@example.com"}},
	}

	_, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	// Ровно по одному батч-запросу на вид идентичности,
	// сколько бы встреч и событий ни было
	require.Equal(t, 1, users.byIDCalls)
	require.Equal(t, 1, users.byEmailCalls)
}

func TestCombineEvents_ResolvesAttendeeUsernames(t *testing.T) {
	svc, _, _, gw, _ := newReconcileFixture()

	gw.events = []model.ExternalEvent{{
		ID:             "E1",
		Start:          time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		AttendeeEmails: []string{"TANAKA@example.com", "guest@example.com"},
	}}

	view, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Len(t, view.Events, 1)
	attendees := view.Events[0].Attendees
	require.Equal(t, "tanaka", attendees[0].Username)
	require.Empty(t, attendees[1].Username)
}

func TestCombineEvents_FreshnessOnCacheMiss(t *testing.T) {
	svc, _, _, gw, c := newReconcileFixture()
	gw.events = []model.ExternalEvent{{ID: "E1", Start: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}}

	view, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Equal(t, model.FreshnessFresh, view.Freshness)
	require.Equal(t, 1, gw.fetchCalls)
	require.Equal(t, 1, c.setCalls)
}

func TestCombineEvents_FreshnessOnCacheHit(t *testing.T) {
	svc, _, _, gw, c := newReconcileFixture()
	c.events = []model.ExternalEvent{{ID: "E1", Start: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}}
	c.present = true

	view, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Equal(t, model.FreshnessPrimaryCache, view.Freshness)
	require.Zero(t, gw.fetchCalls)
}

func TestCombineEvents_StaleCacheOnGatewayFailure(t *testing.T) {
	svc, _, _, gw, c := newReconcileFixture()

	// Кэш просрочен 10 минут назад, провайдер лежит:
	// чтение обязано вернуть старое значение, а не пустой список
	c.events = []model.ExternalEvent{{ID: "E1", Start: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}}
	c.present = true
	c.expired = true
	gw.fetchErr = gateway.ErrTimeout

	view, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Equal(t, model.FreshnessStaleCache, view.Freshness)
	require.Len(t, view.Events, 1)
	require.Equal(t, "E1", view.Events[0].ExternalEventID)
}

func TestCombineEvents_GatewayFailureWithoutCache(t *testing.T) {
	svc, _, _, gw, _ := newReconcileFixture()
	gw.fetchErr = gateway.ErrTimeout

	_, err := svc.CombineEvents(context.Background(), windowFrom, windowTo)
	require.ErrorIs(t, err, gateway.ErrTimeout)
}

func TestRefreshFeed(t *testing.T) {
	svc, _, _, gw, c := newReconcileFixture()
	gw.events = []model.ExternalEvent{{ID: "E1"}}

	require.NoError(t, svc.RefreshFeed(context.Background()))
	require.Equal(t, 1, c.setCalls)

	gw.fetchErr = gateway.ErrTimeout
	require.Error(t, svc.RefreshFeed(context.Background()))
	require.Equal(t, 1, c.setCalls)
}
