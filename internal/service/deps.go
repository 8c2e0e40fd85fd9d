package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/TI02-jp/site-sub001/internal/gateway"
	"github.com/TI02-jp/site-sub001/internal/model"
)

// MeetingStore локальное хранилище встреч.
// Реализуется repository.MeetingRepository.
type MeetingStore interface {
	Create(ctx context.Context, m *model.Meeting) error
	GetByID(ctx context.Context, id int64) (*model.Meeting, error)
	ListWindow(ctx context.Context, from, to time.Time) ([]*model.Meeting, error)
	GetBySeriesID(ctx context.Context, seriesID uuid.UUID) ([]*model.Meeting, error)
	UpdateStatus(ctx context.Context, id int64, status model.MeetingStatus) error
	SetParticipants(ctx context.Context, meetingID int64, userIDs []int64) error
}

// IdentityStore батч-доступ к пользователям портала.
// Оба метода обязаны выполняться одним запросом на весь список —
// резолв по одной записи за раз запрещён.
type IdentityStore interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
	GetByEmails(ctx context.Context, emails []string) ([]*model.User, error)
}

// CalendarGateway операции внешнего календарного провайдера.
// Все вызовы ограничены фиксированным таймаутом на стороне реализации.
type CalendarGateway interface {
	FetchUpcoming(ctx context.Context, maxResults int) ([]model.ExternalEvent, error)
	CreateEvent(ctx context.Context, req gateway.CreateEventRequest) (*gateway.CreatedEvent, error)
	CreateConferenceEvent(ctx context.Context, req gateway.CreateEventRequest) (*gateway.CreatedEvent, error)
}

// EventCache TTL-кэш сырой внешней ленты
type EventCache interface {
	Get(key string) ([]model.ExternalEvent, bool)
	GetStale(key string) (events []model.ExternalEvent, expired bool, ok bool)
	Set(key string, events []model.ExternalEvent, ttl time.Duration)
	Invalidate(key string)
}
