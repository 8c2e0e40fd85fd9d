package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TI02-jp/site-sub001/internal/gateway"
	"github.com/TI02-jp/site-sub001/internal/model"
)

// fakeMeetingStore in-memory реализация MeetingStore
type fakeMeetingStore struct {
	meetings  []*model.Meeting
	nextID    int64
	createErr error
}

func (f *fakeMeetingStore) Create(_ context.Context, m *model.Meeting) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	m.ID = f.nextID
	f.meetings = append(f.meetings, m)
	return nil
}

func (f *fakeMeetingStore) GetByID(_ context.Context, id int64) (*model.Meeting, error) {
	for _, m := range f.meetings {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMeetingStore) ListWindow(_ context.Context, from, to time.Time) ([]*model.Meeting, error) {
	var out []*model.Meeting
	for _, m := range f.meetings {
		if m.Status == model.MeetingStatusCancelled {
			continue
		}
		if m.Start.Before(from) || m.Start.After(to) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMeetingStore) GetBySeriesID(_ context.Context, seriesID uuid.UUID) ([]*model.Meeting, error) {
	var out []*model.Meeting
	for _, m := range f.meetings {
		if m.SeriesID != nil && *m.SeriesID == seriesID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeetingStore) UpdateStatus(_ context.Context, id int64, status model.MeetingStatus) error {
	for _, m := range f.meetings {
		if m.ID == id {
			m.Status = status
			return nil
		}
	}
	return fmt.Errorf("meeting not found")
}

func (f *fakeMeetingStore) SetParticipants(_ context.Context, meetingID int64, userIDs []int64) error {
	for _, m := range f.meetings {
		if m.ID == meetingID {
			m.ParticipantIDs = userIDs
			return nil
		}
	}
	return fmt.Errorf("meeting not found")
}

// fakeIdentityStore считает батч-вызовы, чтобы тесты могли проверить
// отсутствие фан-аута по записям
type fakeIdentityStore struct {
	users        []*model.User
	byIDCalls    int
	byEmailCalls int
}

func (f *fakeIdentityStore) GetByIDs(_ context.Context, ids []int64) ([]*model.User, error) {
	f.byIDCalls++
	var out []*model.User
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeIdentityStore) GetByEmails(_ context.Context, emails []string) ([]*model.User, error) {
	f.byEmailCalls++
	var out []*model.User
	for _, u := range f.users {
		for _, email := range emails {
			if strings.EqualFold(u.Email, email) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

// fakeGateway конфигурируемый внешний календарь
type fakeGateway struct {
	events     []model.ExternalEvent
	fetchErr   error
	fetchCalls int

	createCalls     int
	conferenceCalls int
	// failOnCall номер вызова создания, который должен упасть (1-based, 0 — никогда)
	failOnCall int
	createErr  error
}

func (f *fakeGateway) FetchUpcoming(_ context.Context, _ int) ([]model.ExternalEvent, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.events, nil
}

func (f *fakeGateway) CreateEvent(_ context.Context, req gateway.CreateEventRequest) (*gateway.CreatedEvent, error) {
	return f.create(req, false)
}

func (f *fakeGateway) CreateConferenceEvent(_ context.Context, req gateway.CreateEventRequest) (*gateway.CreatedEvent, error) {
	f.conferenceCalls++
	return f.create(req, true)
}

func (f *fakeGateway) create(_ gateway.CreateEventRequest, conference bool) (*gateway.CreatedEvent, error) {
	f.createCalls++
	if f.failOnCall > 0 && f.createCalls >= f.failOnCall {
		if f.createErr != nil {
			return nil, f.createErr
		}
		return nil, gateway.ErrTimeout
	}
	created := &gateway.CreatedEvent{ID: fmt.Sprintf("EXT-%d", f.createCalls)}
	if conference {
		created.ConferenceLink = fmt.Sprintf("https://meet.example.com/%d", f.createCalls)
	}
	return created, nil
}

// fakeCache управляемая реализация EventCache
type fakeCache struct {
	events        []model.ExternalEvent
	present       bool
	expired       bool
	setCalls      int
	invalidations int
}

func (f *fakeCache) Get(_ string) ([]model.ExternalEvent, bool) {
	if !f.present || f.expired {
		return nil, false
	}
	return f.events, true
}

func (f *fakeCache) GetStale(_ string) ([]model.ExternalEvent, bool, bool) {
	if !f.present {
		return nil, false, false
	}
	return f.events, f.expired, true
}

func (f *fakeCache) Set(_ string, events []model.ExternalEvent, _ time.Duration) {
	f.setCalls++
	f.events = events
	f.present = true
	f.expired = false
}

func (f *fakeCache) Invalidate(_ string) {
	f.invalidations++
	f.present = false
	f.events = nil
}
