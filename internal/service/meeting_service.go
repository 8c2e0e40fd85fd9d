package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TI02-jp/site-sub001/internal/cache"
	"github.com/TI02-jp/site-sub001/internal/gateway"
	"github.com/TI02-jp/site-sub001/internal/model"
)

// MeetingService одиночные встречи и мутации существующих записей.
// Каждая локальная мутация синхронно сбрасывает кэш внешней ленты,
// чтобы следующее чтение пересобрало представление.
type MeetingService struct {
	meetings MeetingStore
	users    IdentityStore
	gw       CalendarGateway
	cache    EventCache
	logger   *zap.Logger
}

// NewMeetingService создаёт новый сервис встреч
func NewMeetingService(
	meetings MeetingStore,
	users IdentityStore,
	gw CalendarGateway,
	eventCache EventCache,
	logger *zap.Logger,
) *MeetingService {
	return &MeetingService{
		meetings: meetings,
		users:    users,
		gw:       gw,
		cache:    eventCache,
		logger:   logger,
	}
}

// CreateMeetingInput параметры одиночной встречи
type CreateMeetingInput struct {
	Subject        string
	Description    string
	Start          time.Time
	End            time.Time
	CreatorID      int64
	ParticipantIDs []int64
	Conference     bool
	Notify         bool
}

// CreateMeeting создаёт одиночную встречу: событие у провайдера,
// затем локальная запись
func (s *MeetingService) CreateMeeting(ctx context.Context, input CreateMeetingInput) (*model.Meeting, error) {
	if !input.End.After(input.Start) {
		return nil, fmt.Errorf("meeting end must be after start")
	}

	users, err := s.users.GetByIDs(ctx, input.ParticipantIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email != "" {
			emails = append(emails, u.Email)
		}
	}

	req := gateway.CreateEventRequest{
		Subject:        input.Subject,
		Description:    input.Description,
		Start:          input.Start,
		End:            input.End,
		AttendeeEmails: emails,
		Notify:         input.Notify,
	}

	var created *gateway.CreatedEvent
	if input.Conference {
		created, err = s.gw.CreateConferenceEvent(ctx, req)
	} else {
		created, err = s.gw.CreateEvent(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("create external event: %w", err)
	}

	meeting := &model.Meeting{
		Subject:         input.Subject,
		Description:     input.Description,
		Status:          model.MeetingStatusScheduled,
		Start:           input.Start,
		End:             input.End,
		ExternalEventID: &created.ID,
		ConferenceLink:  created.ConferenceLink,
		CreatorID:       input.CreatorID,
		ParticipantIDs:  input.ParticipantIDs,
		Recurrence:      model.RecurrenceRule{Kind: model.RecurrenceNone},
	}

	if err := s.meetings.Create(ctx, meeting); err != nil {
		return nil, fmt.Errorf("persist meeting: %w", err)
	}

	s.cache.Invalidate(cache.KeyRawExternalEvents)

	s.logger.Info("Meeting created",
		zap.Int64("meeting_id", meeting.ID),
		zap.String("external_event_id", created.ID),
	)

	return meeting, nil
}

// Cancel отменяет встречу. Отмена — смена статуса, запись не удаляется.
func (s *MeetingService) Cancel(ctx context.Context, meetingID int64) error {
	return s.updateStatus(ctx, meetingID, model.MeetingStatusCancelled)
}

// Complete помечает встречу завершённой
func (s *MeetingService) Complete(ctx context.Context, meetingID int64) error {
	return s.updateStatus(ctx, meetingID, model.MeetingStatusCompleted)
}

func (s *MeetingService) updateStatus(ctx context.Context, meetingID int64, status model.MeetingStatus) error {
	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("get meeting: %w", err)
	}
	if meeting == nil {
		return fmt.Errorf("meeting not found")
	}

	if err := s.meetings.UpdateStatus(ctx, meetingID, status); err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}

	s.cache.Invalidate(cache.KeyRawExternalEvents)

	s.logger.Info("Meeting status updated",
		zap.Int64("meeting_id", meetingID),
		zap.String("status", string(status)),
	)

	return nil
}

// SetParticipants заменяет состав участников встречи
func (s *MeetingService) SetParticipants(ctx context.Context, meetingID int64, userIDs []int64) error {
	meeting, err := s.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("get meeting: %w", err)
	}
	if meeting == nil {
		return fmt.Errorf("meeting not found")
	}

	if err := s.meetings.SetParticipants(ctx, meetingID, userIDs); err != nil {
		return err
	}

	s.cache.Invalidate(cache.KeyRawExternalEvents)

	s.logger.Info("Meeting participants updated",
		zap.Int64("meeting_id", meetingID),
		zap.Int("participants", len(userIDs)),
	)

	return nil
}
